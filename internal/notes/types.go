package notes

import (
	"context"
	"errors"
	"time"
)

// ErrNoteNotFound is returned by a Store when no note has the requested id.
var ErrNoteNotFound = errors.New("note not found")

// Tag is a label embedded in a note. Tags are identified by ID only; two tags
// with the same name but different ids are different tags.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Note is a user's note as stored and as sent over the wire.
type Note struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       []Tag     `json:"tags"`
	IsPinned   bool      `json:"isPinned"`
	IsArchived bool      `json:"isArchived"`
	OwnerID    string    `json:"ownerId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasTag reports whether the note carries a tag with the given id.
func (n Note) HasTag(tagID string) bool {
	for _, t := range n.Tags {
		if t.ID == tagID {
			return true
		}
	}
	return false
}

// Clone returns a copy of n that shares no memory with it.
func (n Note) Clone() Note {
	c := n
	c.Tags = append([]Tag{}, n.Tags...)
	return c
}

// CreateNoteParams contains parameters for creating a note.
// An ownerId in the request body has no field here and is never honored.
type CreateNoteParams struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Tags       []Tag  `json:"tags"`
	IsPinned   bool   `json:"isPinned"`
	IsArchived bool   `json:"isArchived"`
}

// UpdateNoteParams contains parameters for updating a note.
// A nil field (absent or JSON null) leaves the stored value unchanged.
// A non-nil empty Tags slice clears the tags.
type UpdateNoteParams struct {
	Title      *string `json:"title,omitempty"`
	Content    *string `json:"content,omitempty"`
	Tags       *[]Tag  `json:"tags,omitempty"`
	IsPinned   *bool   `json:"isPinned,omitempty"`
	IsArchived *bool   `json:"isArchived,omitempty"`
}

// Store persists notes. Implementations return ErrNoteNotFound for unknown ids.
type Store interface {
	Insert(ctx context.Context, note Note) error
	Get(ctx context.Context, id string) (Note, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Note, error)
	// Update loads the note, applies mutate and writes the result atomically.
	// If mutate returns an error nothing is written and that error is returned.
	Update(ctx context.Context, id string, mutate func(*Note) error) (Note, error)
	Delete(ctx context.Context, id string) error
	// Search returns the owner's notes whose title, content or tag names
	// contain the query under Fold, newest first.
	Search(ctx context.Context, ownerID, query string) ([]Note, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

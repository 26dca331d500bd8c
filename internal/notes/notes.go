package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/notewise/internal/errs"
)

// Service handles note operations for authenticated callers. Every operation
// takes the caller's user id; a note is visible only to its owner.
type Service struct {
	store Store
	clock Clock
}

// NewService creates a new notes service on top of store.
func NewService(store Store) *Service {
	return &Service{store: store, clock: realClock{}}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *Service) SetClock(c Clock) {
	s.clock = c
}

// List returns all of the owner's notes, most recently updated first.
func (s *Service) List(ctx context.Context, ownerID string) ([]Note, error) {
	list, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to list notes", err)
	}
	return list, nil
}

// Get returns one note. An unknown id is NotFound; a note owned by someone
// else is PermissionDenied. Existence is checked first.
func (s *Service) Get(ctx context.Context, ownerID, noteID string) (*Note, error) {
	note, err := s.store.Get(ctx, noteID)
	if err != nil {
		return nil, storeError(err, noteID)
	}
	if err := checkOwner(note, ownerID); err != nil {
		return nil, err
	}
	return &note, nil
}

// Create validates params and stores a new note owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, params CreateNoteParams) (*Note, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, errs.New(errs.InvalidArgument, "title is required")
	}
	tags, err := normalizeTags(params.Tags)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	note := Note{
		ID:         uuid.NewString(),
		Title:      title,
		Content:    params.Content,
		Tags:       tags,
		IsPinned:   params.IsPinned,
		IsArchived: params.IsArchived,
		OwnerID:    ownerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Insert(ctx, note); err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to create note", err)
	}
	return &note, nil
}

// Update applies the non-nil fields of params and refreshes updatedAt. The
// read, ownership check and write happen in one store transaction.
func (s *Service) Update(ctx context.Context, ownerID, noteID string, params UpdateNoteParams) (*Note, error) {
	var title string
	if params.Title != nil {
		title = strings.TrimSpace(*params.Title)
		if title == "" {
			return nil, errs.New(errs.InvalidArgument, "title cannot be empty")
		}
	}
	var tags []Tag
	if params.Tags != nil {
		var err error
		if tags, err = normalizeTags(*params.Tags); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	updated, err := s.store.Update(ctx, noteID, func(n *Note) error {
		if err := checkOwner(*n, ownerID); err != nil {
			return err
		}
		if params.Title != nil {
			n.Title = title
		}
		if params.Content != nil {
			n.Content = *params.Content
		}
		if params.Tags != nil {
			n.Tags = tags
		}
		if params.IsPinned != nil {
			n.IsPinned = *params.IsPinned
		}
		if params.IsArchived != nil {
			n.IsArchived = *params.IsArchived
		}
		n.UpdatedAt = advance(n.UpdatedAt, now)
		return nil
	})
	if err != nil {
		return nil, storeError(err, noteID)
	}
	return &updated, nil
}

// Delete permanently removes a note and its tags.
func (s *Service) Delete(ctx context.Context, ownerID, noteID string) error {
	if _, err := s.Get(ctx, ownerID, noteID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, noteID); err != nil {
		return storeError(err, noteID)
	}
	return nil
}

// Search returns the owner's notes whose title, content or tag names contain
// query, ignoring case. A blank query is rejected.
func (s *Service) Search(ctx context.Context, ownerID, query string) ([]Note, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.New(errs.InvalidArgument, "search query is required")
	}
	list, err := s.store.Search(ctx, ownerID, query)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to search notes", err)
	}
	return list, nil
}

func checkOwner(n Note, ownerID string) error {
	if n.OwnerID != ownerID {
		return errs.New(errs.PermissionDenied, "not authorized to access this note")
	}
	return nil
}

// storeError passes coded errors through and maps store errors to codes.
func storeError(err error, noteID string) error {
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, ErrNoteNotFound) {
		return errs.Wrap(errs.NotFound, fmt.Sprintf("note not found: %s", noteID), err)
	}
	return errs.Wrap(errs.Internal, "note store failure", err)
}

// normalizeTags trims tag names, assigns ids to tags that have none and
// rejects tags without a name or color. The result is never nil.
func normalizeTags(in []Tag) ([]Tag, error) {
	out := make([]Tag, 0, len(in))
	for i, t := range in {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("tag %d: name is required", i))
		}
		if t.Color == "" {
			return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("tag %d: color is required", i))
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		out = append(out, t)
	}
	return out, nil
}

// advance returns now, or prev plus one nanosecond when the clock has not
// moved past prev, so updatedAt strictly increases on every write.
func advance(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}

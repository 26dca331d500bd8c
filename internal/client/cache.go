package client

import (
	"context"
	"sync"

	"github.com/kuitang/notewise/internal/notes"
)

// NotesAPI is the subset of the API the Cache synchronises through.
type NotesAPI interface {
	ListNotes(ctx context.Context) ([]notes.Note, error)
	CreateNote(ctx context.Context, params notes.CreateNoteParams) (*notes.Note, error)
	UpdateNote(ctx context.Context, id string, params notes.UpdateNoteParams) (*notes.Note, error)
	DeleteNote(ctx context.Context, id string) error
}

var _ NotesAPI = (*Client)(nil)

// Cache holds one session's notes and keeps them in step with the server.
//
// Local state only changes after the server confirms a call; a failed call
// leaves it as it was and returns the error. The lock is never held while a
// call is in flight. Results of calls that started before Clear are dropped.
type Cache struct {
	api NotesAPI

	mu    sync.RWMutex
	notes []notes.Note
	gen   uint64
}

// NewCache creates an empty cache for a session. Call Refresh to load it.
func NewCache(api NotesAPI) *Cache {
	return &Cache{api: api}
}

// Refresh replaces the local collection with the server's.
func (c *Cache) Refresh(ctx context.Context) error {
	gen := c.generation()
	list, err := c.api.ListNotes(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	c.notes = cloneAll(list)
	return nil
}

// Create creates a note and appends the server's record.
func (c *Cache) Create(ctx context.Context, params notes.CreateNoteParams) (notes.Note, error) {
	gen := c.generation()
	created, err := c.api.CreateNote(ctx, params)
	if err != nil {
		return notes.Note{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.notes = append(c.notes, created.Clone())
	}
	return created.Clone(), nil
}

// Update applies a partial update and replaces the local record in place.
func (c *Cache) Update(ctx context.Context, id string, params notes.UpdateNoteParams) (notes.Note, error) {
	gen := c.generation()
	updated, err := c.api.UpdateNote(ctx, id, params)
	if err != nil {
		return notes.Note{}, err
	}
	c.merge(gen, *updated)
	return updated.Clone(), nil
}

// Delete removes a note on the server and then locally.
func (c *Cache) Delete(ctx context.Context, id string) error {
	gen := c.generation()
	if err := c.api.DeleteNote(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	for i := range c.notes {
		if c.notes[i].ID == id {
			c.notes = append(c.notes[:i:i], c.notes[i+1:]...)
			break
		}
	}
	return nil
}

// TogglePin flips isPinned. An id not in the cache is a no-op.
func (c *Cache) TogglePin(ctx context.Context, id string) error {
	return c.toggle(ctx, id, func(n notes.Note) notes.UpdateNoteParams {
		v := !n.IsPinned
		return notes.UpdateNoteParams{IsPinned: &v}
	})
}

// ToggleArchive flips isArchived. An id not in the cache is a no-op.
func (c *Cache) ToggleArchive(ctx context.Context, id string) error {
	return c.toggle(ctx, id, func(n notes.Note) notes.UpdateNoteParams {
		v := !n.IsArchived
		return notes.UpdateNoteParams{IsArchived: &v}
	})
}

func (c *Cache) toggle(ctx context.Context, id string, negate func(notes.Note) notes.UpdateNoteParams) error {
	current, ok := c.Get(id)
	if !ok {
		return nil
	}
	_, err := c.Update(ctx, id, negate(current))
	return err
}

// Clear drops every note. Used on logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = nil
	c.gen++
}

// Get returns a copy of the cached note with id.
func (c *Cache) Get(id string) (notes.Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range c.notes {
		if n.ID == id {
			return n.Clone(), true
		}
	}
	return notes.Note{}, false
}

// Notes returns a copy of the whole collection in cache order.
func (c *Cache) Notes() []notes.Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.notes)
}

// Active returns unarchived notes, pinned first.
func (c *Cache) Active() []notes.Note { return c.view(notes.Active) }

// Pinned returns pinned, unarchived notes.
func (c *Cache) Pinned() []notes.Note { return c.view(notes.ByPinned) }

// Archived returns archived notes.
func (c *Cache) Archived() []notes.Note { return c.view(notes.ByArchived) }

// Recent returns up to limit unarchived notes, newest first.
func (c *Cache) Recent(limit int) []notes.Note {
	return c.view(func(list []notes.Note) []notes.Note { return notes.ByRecent(list, limit) })
}

// Tagged returns unarchived notes carrying the tag id.
func (c *Cache) Tagged(tagID string) []notes.Note {
	return c.view(func(list []notes.Note) []notes.Note { return notes.ByTag(list, tagID) })
}

// Search filters locally without a round trip.
func (c *Cache) Search(query string) []notes.Note {
	return c.view(func(list []notes.Note) []notes.Note { return notes.BySearch(list, query) })
}

// Tags summarises tag usage by tag id.
func (c *Cache) Tags() map[string]notes.TagCount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return notes.TagSummary(c.notes)
}

// Counts returns the sidebar counters.
func (c *Cache) Counts() notes.ViewCounts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return notes.Counts(c.notes)
}

func (c *Cache) view(fn func([]notes.Note) []notes.Note) []notes.Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.notes)
}

func (c *Cache) merge(gen uint64, updated notes.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	for i := range c.notes {
		if c.notes[i].ID == updated.ID {
			c.notes[i] = updated.Clone()
			return
		}
	}
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func cloneAll(list []notes.Note) []notes.Note {
	out := make([]notes.Note, len(list))
	for i, n := range list {
		out[i] = n.Clone()
	}
	return out
}

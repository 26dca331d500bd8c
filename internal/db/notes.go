package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kuitang/notewise/internal/notes"
)

// NoteStore implements notes.Store on the encrypted database.
type NoteStore struct {
	db *sql.DB
}

var _ notes.Store = (*NoteStore)(nil)

const noteColumns = `id, owner_id, title, content, is_pinned, is_archived, created_at, updated_at`

// Insert stores a new note and its tags in one transaction.
func (s *NoteStore) Insert(ctx context.Context, note notes.Note) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			note.ID, note.OwnerID, note.Title, note.Content,
			boolToInt(note.IsPinned), boolToInt(note.IsArchived),
			note.CreatedAt.UnixNano(), note.UpdatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
		return replaceTags(ctx, tx, note.ID, note.Tags)
	})
}

// Get returns the note with the given id, regardless of owner.
func (s *NoteStore) Get(ctx context.Context, id string) (notes.Note, error) {
	return getNote(ctx, s.db, id)
}

// ListByOwner returns the owner's notes, most recently updated first.
func (s *NoteStore) ListByOwner(ctx context.Context, ownerID string) ([]notes.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE owner_id = ? ORDER BY updated_at DESC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	list, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}
	return s.attachOwnerTags(ctx, ownerID, list)
}

// Update applies mutate to the stored note inside a transaction. The owner and
// creation time are restored after mutate runs.
func (s *NoteStore) Update(ctx context.Context, id string, mutate func(*notes.Note) error) (notes.Note, error) {
	var updated notes.Note
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := getNote(ctx, tx, id)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := mutate(&next); err != nil {
			return err
		}
		next.ID = current.ID
		next.OwnerID = current.OwnerID
		next.CreatedAt = current.CreatedAt

		_, err = tx.ExecContext(ctx,
			`UPDATE notes SET title = ?, content = ?, is_pinned = ?, is_archived = ?, updated_at = ? WHERE id = ?`,
			next.Title, next.Content, boolToInt(next.IsPinned), boolToInt(next.IsArchived),
			next.UpdatedAt.UnixNano(), id,
		)
		if err != nil {
			return fmt.Errorf("update note: %w", err)
		}
		if err := replaceTags(ctx, tx, id, next.Tags); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return notes.Note{}, err
	}
	return updated, nil
}

// Delete removes the note and its tags.
func (s *NoteStore) Delete(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, id); err != nil {
			return fmt.Errorf("delete note tags: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete note: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete note: %w", err)
		}
		if affected == 0 {
			return notes.ErrNoteNotFound
		}
		return nil
	})
}

// Search matches query against title, content and tag names using the
// contains_fold() SQL function, so non-ASCII letters compare case-insensitively.
func (s *NoteStore) Search(ctx context.Context, ownerID, query string) ([]notes.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+` FROM notes n
		WHERE n.owner_id = ?
		  AND (contains_fold(n.title, ?)
		    OR contains_fold(n.content, ?)
		    OR EXISTS (SELECT 1 FROM note_tags t
		               WHERE t.note_id = n.id AND contains_fold(t.name, ?)))
		ORDER BY n.updated_at DESC, n.id ASC`,
		ownerID, query, query, query,
	)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	list, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}
	return s.attachOwnerTags(ctx, ownerID, list)
}

func getNote(ctx context.Context, q queryer, id string) (notes.Note, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	if err != nil {
		return notes.Note{}, fmt.Errorf("get note: %w", err)
	}
	list, err := scanNotes(rows)
	if err != nil {
		return notes.Note{}, err
	}
	if len(list) == 0 {
		return notes.Note{}, notes.ErrNoteNotFound
	}

	note := list[0]
	tagRows, err := q.QueryContext(ctx,
		`SELECT note_id, tag_id, name, color FROM note_tags WHERE note_id = ? ORDER BY position`, id)
	if err != nil {
		return notes.Note{}, fmt.Errorf("get note tags: %w", err)
	}
	tags, err := scanTags(tagRows)
	if err != nil {
		return notes.Note{}, err
	}
	note.Tags = append(note.Tags, tags[id]...)
	return note, nil
}

// attachOwnerTags loads every tag of the owner's notes in one query.
func (s *NoteStore) attachOwnerTags(ctx context.Context, ownerID string, list []notes.Note) ([]notes.Note, error) {
	if len(list) == 0 {
		return list, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.note_id, t.tag_id, t.name, t.color FROM note_tags t
		JOIN notes n ON n.id = t.note_id
		WHERE n.owner_id = ?
		ORDER BY t.note_id, t.position`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list note tags: %w", err)
	}
	tags, err := scanTags(rows)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Tags = append(list[i].Tags, tags[list[i].ID]...)
	}
	return list, nil
}

func replaceTags(ctx context.Context, tx *sql.Tx, noteID string, tags []notes.Tag) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("clear note tags: %w", err)
	}
	for i, tag := range tags {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO note_tags (note_id, position, tag_id, name, color) VALUES (?, ?, ?, ?, ?)`,
			noteID, i, tag.ID, tag.Name, tag.Color,
		)
		if err != nil {
			return fmt.Errorf("insert note tag: %w", err)
		}
	}
	return nil
}

// scanNotes reads note rows and closes rows. Tags are initialized empty.
func scanNotes(rows *sql.Rows) ([]notes.Note, error) {
	defer rows.Close()

	list := []notes.Note{}
	for rows.Next() {
		var (
			n                    notes.Note
			pinned, archived     int64
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &pinned, &archived, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.IsPinned = pinned != 0
		n.IsArchived = archived != 0
		n.CreatedAt = time.Unix(0, createdAt).UTC()
		n.UpdatedAt = time.Unix(0, updatedAt).UTC()
		n.Tags = []notes.Tag{}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return list, nil
}

// scanTags reads tag rows grouped by note id and closes rows.
func scanTags(rows *sql.Rows) (map[string][]notes.Tag, error) {
	defer rows.Close()

	tags := make(map[string][]notes.Tag)
	for rows.Next() {
		var noteID string
		var t notes.Tag
		if err := rows.Scan(&noteID, &t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("scan note tag: %w", err)
		}
		tags[noteID] = append(tags[noteID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note tags: %w", err)
	}
	return tags, nil
}

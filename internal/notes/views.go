package notes

import (
	"sort"
	"strings"
)

// DefaultRecentLimit is the number of notes ByRecent returns when no limit is given.
const DefaultRecentLimit = 10

// TagCount is one entry of a TagSummary.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ViewCounts holds the sidebar counters.
type ViewCounts struct {
	All      int `json:"all"`
	Pinned   int `json:"pinned"`
	Archived int `json:"archived"`
}

// The view functions below never modify their input. Returned slices are
// freshly allocated and hold copies of the notes.

// Fold is the case folding used for search, both here and in SQL.
func Fold(s string) string {
	return strings.ToLower(s)
}

// Matches reports whether query occurs in the note's title, content or any tag
// name, ignoring case. An empty query matches every note.
func Matches(n Note, query string) bool {
	q := Fold(query)
	if strings.Contains(Fold(n.Title), q) || strings.Contains(Fold(n.Content), q) {
		return true
	}
	for _, t := range n.Tags {
		if strings.Contains(Fold(t.Name), q) {
			return true
		}
	}
	return false
}

func filter(notes []Note, keep func(Note) bool) []Note {
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if keep(n) {
			out = append(out, n.Clone())
		}
	}
	return out
}

// Active returns the notes that are not archived, pinned notes first. Each
// group keeps its input order.
func Active(notes []Note) []Note {
	pinned := filter(notes, func(n Note) bool { return n.IsPinned && !n.IsArchived })
	rest := filter(notes, func(n Note) bool { return !n.IsPinned && !n.IsArchived })
	return append(pinned, rest...)
}

// ByPinned returns pinned notes. Archived notes are excluded even when pinned.
func ByPinned(notes []Note) []Note {
	return filter(notes, func(n Note) bool { return n.IsPinned && !n.IsArchived })
}

// ByArchived returns archived notes.
func ByArchived(notes []Note) []Note {
	return filter(notes, func(n Note) bool { return n.IsArchived })
}

// ByRecent returns up to limit non-archived notes, most recently updated first.
// A limit <= 0 means DefaultRecentLimit.
func ByRecent(notes []Note, limit int) []Note {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	out := filter(notes, func(n Note) bool { return !n.IsArchived })
	SortByUpdated(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ByTag returns non-archived notes carrying a tag with the given id.
func ByTag(notes []Note, tagID string) []Note {
	return filter(notes, func(n Note) bool { return !n.IsArchived && n.HasTag(tagID) })
}

// BySearch returns the notes matching query with surrounding whitespace
// trimmed. An empty query returns a copy of the input.
func BySearch(notes []Note, query string) []Note {
	query = strings.TrimSpace(query)
	if query == "" {
		return filter(notes, func(Note) bool { return true })
	}
	return filter(notes, func(n Note) bool { return Matches(n, query) })
}

// TagSummary groups tags by id across all notes, counting every occurrence.
// The name is the first one seen for the id.
func TagSummary(notes []Note) map[string]TagCount {
	summary := make(map[string]TagCount)
	for _, n := range notes {
		for _, t := range n.Tags {
			tc, ok := summary[t.ID]
			if !ok {
				tc.Name = t.Name
			}
			tc.Count++
			summary[t.ID] = tc
		}
	}
	return summary
}

// Counts computes the sidebar counters. All counts non-archived notes.
func Counts(notes []Note) ViewCounts {
	var c ViewCounts
	for _, n := range notes {
		switch {
		case n.IsArchived:
			c.Archived++
		case n.IsPinned:
			c.All++
			c.Pinned++
		default:
			c.All++
		}
	}
	return c
}

// SortByUpdated sorts notes in place, most recently updated first, ties by id.
func SortByUpdated(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
		}
		return notes[i].ID < notes[j].ID
	})
}

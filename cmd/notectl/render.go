package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kuitang/notewise/internal/notes"
)

const (
	timeFormat     = "2006-01-02 15:04"
	previewLines   = 2
	snippetContext = 1
)

// tagColors maps the color names the web client offers to ANSI colors.
// Anything else is passed to lipgloss as is, so hex colors work too.
var tagColors = map[string]string{
	"red":    "196",
	"orange": "208",
	"yellow": "226",
	"green":  "46",
	"blue":   "39",
	"purple": "135",
	"pink":   "213",
	"gray":   "245",
	"grey":   "245",
}

// renderer prints notes to one writer. Colors are dropped automatically when
// the writer is not a terminal.
type renderer struct {
	w io.Writer

	idStyle       lipgloss.Style
	titleStyle    lipgloss.Style
	pinStyle      lipgloss.Style
	archivedStyle lipgloss.Style
	dimStyle      lipgloss.Style
	lip           *lipgloss.Renderer
}

func newRenderer(w io.Writer) *renderer {
	lip := lipgloss.NewRenderer(w)
	return &renderer{
		w:             w,
		lip:           lip,
		idStyle:       lip.NewStyle().Foreground(lipgloss.Color("245")),
		titleStyle:    lip.NewStyle().Bold(true),
		pinStyle:      lip.NewStyle().Foreground(lipgloss.Color("226")),
		archivedStyle: lip.NewStyle().Faint(true),
		dimStyle:      lip.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (r *renderer) notes(list []notes.Note) {
	if len(list) == 0 {
		fmt.Fprintln(r.w, r.dimStyle.Render("No notes"))
		return
	}
	for _, n := range list {
		r.note(n)
	}
}

func (r *renderer) note(n notes.Note) {
	r.header(n)
	if n.Content == "" {
		return
	}
	lines := strings.Split(notes.Preview(n.Content, previewLines), "\n")
	if more := notes.LineCount(strings.TrimSuffix(n.Content, "\n")) - previewLines; more > 0 {
		unit := "lines"
		if more == 1 {
			unit = "line"
		}
		lines[len(lines)-1] = fmt.Sprintf("... (%d more %s)", more, unit)
	}
	for _, line := range lines {
		fmt.Fprintln(r.w, "    "+r.dimStyle.Render(line))
	}
}

func (r *renderer) header(n notes.Note) {
	marker := " "
	if n.IsPinned {
		marker = r.pinStyle.Render("*")
	}
	title := r.titleStyle.Render(n.Title)
	if n.IsArchived {
		title = r.archivedStyle.Render(n.Title + " (archived)")
	}

	parts := []string{r.idStyle.Render(n.ID), marker, title}
	for _, t := range n.Tags {
		parts = append(parts, r.tag(t))
	}
	parts = append(parts, r.dimStyle.Render(n.UpdatedAt.Local().Format(timeFormat)))
	fmt.Fprintln(r.w, strings.Join(parts, "  "))
}

// full prints a note with its whole body, numbered.
func (r *renderer) full(n notes.Note) {
	r.header(n)
	body, total := notes.NumberLines(n.Content, 1, 0)
	if total == 0 {
		fmt.Fprintln(r.w, r.dimStyle.Render("    (empty)"))
		return
	}
	fmt.Fprintln(r.w, body)
}

// matches prints search results with the matching content lines.
func (r *renderer) matches(list []notes.Note, query string) {
	if len(list) == 0 {
		fmt.Fprintln(r.w, r.dimStyle.Render("No notes"))
		return
	}
	for _, n := range list {
		r.header(n)
		if snippet, ok := notes.MatchSnippet(n.Content, query, snippetContext); ok {
			fmt.Fprintln(r.w, snippet)
		}
	}
}

func (r *renderer) tag(t notes.Tag) string {
	color, ok := tagColors[strings.ToLower(t.Color)]
	if !ok {
		color = t.Color
	}
	return r.lip.NewStyle().Foreground(lipgloss.Color(color)).Render("#" + t.Name)
}

func (r *renderer) counts(c notes.ViewCounts) {
	fmt.Fprintln(r.w, r.dimStyle.Render(fmt.Sprintf("%d notes, %d pinned, %d archived", c.All, c.Pinned, c.Archived)))
}

func (r *renderer) tags(summary map[string]notes.TagCount) {
	if len(summary) == 0 {
		fmt.Fprintln(r.w, r.dimStyle.Render("No tags"))
		return
	}
	ids := make([]string, 0, len(summary))
	for id := range summary {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := summary[ids[i]], summary[ids[j]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		tc := summary[id]
		fmt.Fprintf(r.w, "%-20s %3d  %s\n", tc.Name, tc.Count, r.idStyle.Render(id))
	}
}

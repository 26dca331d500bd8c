package notes

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// multilineContent draws content with 1..20 non-empty lines.
func multilineContent() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		n := rapid.IntRange(1, 20).Draw(t, "numLines")
		lines := make([]string, n)
		for i := range lines {
			lines[i] = rapid.StringMatching(`[A-Za-z0-9 .,!?]{1,80}`).Draw(t, "line")
		}
		return strings.Join(lines, "\n")
	})
}

// =============================================================================
// Property: Preview leaves short content alone
// =============================================================================

func testPreview_Short(t *rapid.T) {
	content := multilineContent().Draw(t, "content")
	maxLines := rapid.IntRange(LineCount(content), LineCount(content)+10).Draw(t, "maxLines")

	if got := Preview(content, maxLines); got != content {
		t.Fatalf("Preview(%d lines, %d) = %q, want input unchanged", LineCount(content), maxLines, got)
	}
}

func TestPreview_Short(t *testing.T) {
	rapid.Check(t, testPreview_Short)
}

func FuzzPreview_Short(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testPreview_Short))
}

// =============================================================================
// Property: Preview of long content keeps exactly maxLines lines plus "..."
// =============================================================================

func testPreview_Truncates(t *rapid.T) {
	content := multilineContent().Draw(t, "content")
	lines := LineCount(content)
	if lines < 2 {
		t.Skip("need at least two lines")
	}
	maxLines := rapid.IntRange(1, lines-1).Draw(t, "maxLines")

	got := Preview(content, maxLines)
	want := strings.Join(strings.Split(content, "\n")[:maxLines], "\n") + "\n..."
	if got != want {
		t.Fatalf("Preview(%q, %d) = %q, want %q", content, maxLines, got, want)
	}
}

func TestPreview_Truncates(t *testing.T) {
	rapid.Check(t, testPreview_Truncates)
}

func FuzzPreview_Truncates(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testPreview_Truncates))
}

func TestPreview_EdgeCases(t *testing.T) {
	tests := []struct {
		content  string
		maxLines int
		want     string
	}{
		{"", 3, ""},
		{"a\nb", 0, "a\nb"},
		{"a\nb", -1, "a\nb"},
		{"a\n", 1, "a\n"},
		{"a\nb\n", 1, "a\n..."},
	}
	for _, tt := range tests {
		if got := Preview(tt.content, tt.maxLines); got != tt.want {
			t.Errorf("Preview(%q, %d) = %q, want %q", tt.content, tt.maxLines, got, tt.want)
		}
	}
}

// =============================================================================
// Property: LineCount is newlines plus one for non-empty content
// =============================================================================

func testLineCount(t *rapid.T) {
	content := rapid.StringMatching(`[a-z\n]{0,60}`).Draw(t, "content")
	want := 0
	if content != "" {
		want = strings.Count(content, "\n") + 1
	}
	if got := LineCount(content); got != want {
		t.Fatalf("LineCount(%q) = %d, want %d", content, got, want)
	}
}

func TestLineCount(t *testing.T) {
	rapid.Check(t, testLineCount)
}

func FuzzLineCount(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testLineCount))
}

// =============================================================================
// Property: NumberLines prefixes every selected line with its number
// =============================================================================

func testNumberLines(t *rapid.T) {
	content := multilineContent().Draw(t, "content")
	lines := strings.Split(content, "\n")
	start := rapid.IntRange(-2, len(lines)+2).Draw(t, "start")
	end := rapid.IntRange(-1, len(lines)+2).Draw(t, "end")

	got, total := NumberLines(content, start, end)
	if total != len(lines) {
		t.Fatalf("total = %d, want %d", total, len(lines))
	}

	from, to := max(start, 1), end
	if to <= 0 || to > len(lines) {
		to = len(lines)
	}
	if from > to {
		if got != "" {
			t.Fatalf("empty range rendered %q", got)
		}
		return
	}

	rendered := strings.Split(got, "\n")
	if len(rendered) != to-from+1 {
		t.Fatalf("rendered %d lines for range %d..%d", len(rendered), from, to)
	}
	for i, line := range rendered {
		want := fmt.Sprintf("%6d\t%s", from+i, lines[from+i-1])
		if line != want {
			t.Fatalf("line %d = %q, want %q", i, line, want)
		}
	}
}

func TestNumberLines(t *testing.T) {
	rapid.Check(t, testNumberLines)
}

func FuzzNumberLines(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testNumberLines))
}

func TestNumberLines_Empty(t *testing.T) {
	if got, total := NumberLines("", 1, 5); got != "" || total != 0 {
		t.Fatalf("NumberLines(\"\") = %q, %d", got, total)
	}
}

// =============================================================================
// MatchSnippet
// =============================================================================

func TestMatchSnippet(t *testing.T) {
	content := "shopping\nbuy MILK\neggs\nbread\nbutter"

	got, ok := MatchSnippet(content, " milk ", 1)
	if !ok {
		t.Fatal("expected a match")
	}
	want := "     1\tshopping\n     2\tbuy MILK\n     3\teggs"
	if got != want {
		t.Fatalf("MatchSnippet = %q, want %q", got, want)
	}

	if got, ok := MatchSnippet(content, "butter", 0); !ok || got != "     5\tbutter" {
		t.Fatalf("MatchSnippet(butter) = %q, %v", got, ok)
	}
	if _, ok := MatchSnippet(content, "cheese", 2); ok {
		t.Fatal("unexpected match for cheese")
	}
	if _, ok := MatchSnippet(content, "  ", 2); ok {
		t.Fatal("blank query must not match")
	}
	if _, ok := MatchSnippet("", "milk", 2); ok {
		t.Fatal("empty content must not match")
	}
}

// =============================================================================
// Property: whenever content matches, the snippet contains the matching line
// =============================================================================

func testMatchSnippet_AgreesWithMatches(t *rapid.T) {
	content := multilineContent().Draw(t, "content")
	query := rapid.StringMatching(`[A-Za-z]{1,3}`).Draw(t, "query")

	snippet, ok := MatchSnippet(content, query, rapid.IntRange(0, 3).Draw(t, "context"))
	contains := strings.Contains(Fold(content), Fold(query))
	if ok != contains {
		t.Fatalf("MatchSnippet ok=%v, content contains query=%v", ok, contains)
	}
	if ok && !strings.Contains(Fold(snippet), Fold(query)) {
		t.Fatalf("snippet %q does not contain %q", snippet, query)
	}
}

func TestMatchSnippet_AgreesWithMatches(t *testing.T) {
	rapid.Check(t, testMatchSnippet_AgreesWithMatches)
}

func FuzzMatchSnippet_AgreesWithMatches(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testMatchSnippet_AgreesWithMatches))
}

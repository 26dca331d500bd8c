package notes

import (
	"fmt"
	"strings"
)

// Preview returns the first maxLines lines of content. Longer content is cut
// at the end of line maxLines and followed by a line holding "...".
func Preview(content string, maxLines int) string {
	if content == "" || maxLines <= 0 {
		return content
	}
	seen := 0
	for i := 0; i < len(content); i++ {
		if content[i] != '\n' {
			continue
		}
		seen++
		if seen == maxLines {
			// A single trailing newline is not a further line
			if i == len(content)-1 {
				return content
			}
			return content[:i] + "\n..."
		}
	}
	return content
}

// LineCount returns the number of lines in content. Empty content has none.
func LineCount(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

// NumberLines renders lines start..end (1-based, inclusive) of content with a
// right-aligned line number and a tab in front of each, like cat -n. end <= 0
// means the last line. The range is clamped. The total line count is
// returned alongside.
func NumberLines(content string, start, end int) (string, int) {
	if content == "" {
		return "", 0
	}
	lines := strings.Split(content, "\n")
	total := len(lines)

	if start < 1 {
		start = 1
	}
	if end <= 0 || end > total {
		end = total
	}
	if start > end {
		return "", total
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		if i > start {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d\t%s", i, lines[i-1])
	}
	return b.String(), total
}

// MatchSnippet finds the first content line containing query, ignoring case,
// and returns it numbered with up to contextLines lines on either side. ok is
// false when only the title or tags match, or nothing does.
func MatchSnippet(content, query string, contextLines int) (snippet string, ok bool) {
	needle := Fold(strings.TrimSpace(query))
	if content == "" || needle == "" {
		return "", false
	}
	if contextLines < 0 {
		contextLines = 0
	}
	for i, line := range strings.Split(content, "\n") {
		if strings.Contains(Fold(line), needle) {
			target := i + 1
			out, _ := NumberLines(content, target-contextLines, target+contextLines)
			return out, true
		}
	}
	return "", false
}

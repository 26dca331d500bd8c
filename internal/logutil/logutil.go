// Package logutil prepares request data for structured logs. Credentials are
// replaced with a marker and free text is cut short, so note content and
// tokens never reach the log sink in full.
package logutil

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Redacted replaces the value of a sensitive field.
const Redacted = "[REDACTED]"

// MaxValueChars bounds each logged query value.
const MaxValueChars = 64

var sensitiveFragments = []string{"authorization", "cookie", "password", "token", "secret", "masterkey", "apikey"}

// IsSensitive reports whether a header, query or field name may carry a
// credential. Case, '-' and '_' are ignored.
func IsSensitive(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer("-", "", "_", "").Replace(k)
	for _, frag := range sensitiveFragments {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

// Headers renders headers as sorted key="value" pairs with sensitive values
// redacted.
func Headers(h http.Header) string {
	if len(h) == 0 {
		return "{}"
	}
	return render(h, func(key, value string) string {
		if IsSensitive(key) {
			return Redacted
		}
		return value
	})
}

// Query renders URL query parameters like Headers. Values are also truncated,
// since a search query is note text.
func Query(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	return render(q, func(key, value string) string {
		if IsSensitive(key) {
			return Redacted
		}
		return Truncate(value, MaxValueChars)
	})
}

func render(m map[string][]string, clean func(key, value string) string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		values := m[k]
		cleaned := make([]string, len(values))
		for i, v := range values {
			cleaned[i] = clean(k, v)
		}
		parts = append(parts, fmt.Sprintf("%s=%q", strings.ToLower(k), strings.Join(cleaned, ", ")))
	}
	return strings.Join(parts, "; ")
}

// Truncate returns value on one line, cut to at most maxChars runes plus a
// marker. maxChars <= 0 disables the cut.
func Truncate(value string, maxChars int) string {
	s := strings.ReplaceAll(strings.TrimSpace(value), "\n", `\n`)
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + "...(truncated)"
}

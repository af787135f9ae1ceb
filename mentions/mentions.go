// Package mentions handles the edge between text and trigger - the
// point where @handle becomes an invocation.
package mentions

import (
	"regexp"
	"sort"
	"strings"
)

var (
	mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]+)`)
	handleRe  = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Extract returns all @mentioned handles in text, lowercased and
// deduplicated. The result is sorted so that logs stay deterministic;
// callers must not rely on the order for anything else.
func Extract(text string) []string {
	seen := make(map[string]bool)
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		seen[strings.ToLower(m[1])] = true
	}

	handles := make([]string, 0, len(seen))
	for h := range seen {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// Has reports whether text contains at least one mention.
func Has(text string) bool {
	return mentionRe.MatchString(text)
}

// Format rewrites each mention through link, for display layers.
func Format(text string, link func(handle string) string) string {
	return mentionRe.ReplaceAllStringFunc(text, func(m string) string {
		return link(strings.ToLower(strings.TrimPrefix(m, "@")))
	})
}

// IsValidHandle reports whether s is a legal handle.
func IsValidHandle(s string) bool {
	return handleRe.MatchString(s)
}

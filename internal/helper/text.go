package helper

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText strips markup from a feed description and collapses whitespace.
func PlainText(s string) string {
	text := html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return strings.TrimSpace(string(r[:max-3])) + "..."
}

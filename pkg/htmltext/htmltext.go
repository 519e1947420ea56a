// Package htmltext converts HTML announcement bodies to plain text.
package htmltext

import (
	"html"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Extract strips markup from an HTML fragment and unescapes entities,
// returning trimmed plain text.
func Extract(content string) string {
	text := tagPattern.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(text))
}

// Truncate shortens text to at most limit runes, appending "..." when the
// text was cut. Chat embeds cap field values at 1024 characters.
func Truncate(text string, limit int) string {
	if limit <= 3 {
		return text
	}
	runes := []rune(text)
	if len(runes) < limit {
		return text
	}
	return string(runes[:limit-4]) + "..."
}

// Package sanitize cleans third-party text before it is echoed to clients.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	entityReplacer  = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"", "&#39;", "'")
)

// StripHTML removes HTML tags, decodes common entities and strips again so
// encoded tags do not survive.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Message makes a remote diagnostic safe for a one-line client message:
// no markup, collapsed whitespace, at most maxRunes runes.
func Message(s string, maxRunes int) string {
	result := whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
	if maxRunes > 0 && utf8.RuneCountInString(result) > maxRunes {
		runes := []rune(result)
		result = strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return result
}

package security

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNotesLength bounds operator notes stored in audit and review records
const MaxNotesLength = 2000

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTMLTags removes anything that looks like an HTML tag
func StripHTMLTags(s string) string {
	return htmlTagPattern.ReplaceAllString(s, "")
}

// RemoveControlCharacters drops control characters except newline and tab
func RemoveControlCharacters(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// TruncateString cuts s to at most maxLength runes
func TruncateString(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	return string([]rune(s)[:maxLength])
}

// SanitizeNotes cleans free-text operator notes before they are persisted.
// The result is trimmed, tag-free and at most MaxNotesLength runes.
func SanitizeNotes(s string) string {
	s = RemoveControlCharacters(s)
	s = StripHTMLTags(s)
	s = strings.TrimSpace(s)
	return TruncateString(s, MaxNotesLength)
}

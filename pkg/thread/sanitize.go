package thread

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxInput bounds the bytes of text accepted per message.
const DefaultMaxInput = 4096

// Sanitize drops invalid UTF-8 and control characters, keeps newlines and
// tabs, and truncates to max bytes on a rune boundary.
func Sanitize(text string, max int) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	if max > 0 && len(text) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return strings.TrimSpace(text)
}

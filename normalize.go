package reverie

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize canonicalizes text for stable keying: NFC, case-folded,
// punctuation and symbols removed, whitespace collapsed to single spaces.
// Normalize(Normalize(x)) == Normalize(x) for every x.
func Normalize(s string) string {
	s = folder.String(norm.NFC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			b.WriteRune(' ')
		case unicode.IsSpace(r), unicode.IsControl(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Words splits text into normalized words.
func Words(s string) []string {
	return strings.Fields(Normalize(s))
}

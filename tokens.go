package reverie

import (
	"strings"
	"unicode/utf8"
)

// EstimateTokens approximates the token count of s as one token per four
// characters.
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s) / 4
}

// truncateRunes cuts s to at most n characters, appending marker when it
// had to cut.
func truncateRunes(s string, n int, marker string) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + marker
}

// truncateWords keeps the first n words, appending "..." when it had to cut.
func truncateWords(words []string, n int) string {
	if n <= 0 || len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}

package reverie

import (
	"strings"
	"unicode/utf8"
)

var stopwords = map[string]bool{
	"этот": true, "это": true, "эта": true, "эти": true, "того": true, "тому": true,
	"меня": true, "тебя": true, "себя": true, "есть": true, "быть": true, "был": true,
	"была": true, "были": true, "буду": true, "будет": true, "который": true,
	"которая": true, "которые": true, "когда": true, "всего": true, "очень": true,
	"также": true, "просто": true, "такой": true, "такая": true, "такие": true,
	"можно": true, "нужно": true, "надо": true, "потому": true, "чтобы": true,
	"about": true, "there": true, "their": true, "would": true, "could": true,
	"should": true, "which": true, "these": true, "those": true,
}

// Keywords returns the distinct normalized words of text with at least
// minRunes characters, excluding stopwords, in order of appearance.
func Keywords(text string, minRunes int) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range Words(text) {
		if utf8.RuneCountInString(w) < minRunes || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// synonymGroups link words that should prefilter the same fragments. Each
// entry is a list of stems; a query stem from a group expands to the whole
// group.
var synonymGroups = [][]string{
	{"люб", "влюбл", "обожа", "нежн"},
	{"скуч", "тоск", "грус", "печал"},
	{"радо", "счаст", "весел"},
	{"дом", "уют", "домашн"},
	{"помн", "памят", "вспомин", "воспомин"},
	{"стра", "боя", "тревож"},
	{"мечт", "сон", "снил", "сни"},
	{"поцел", "объят", "обним", "прикосн"},
	{"спасиб", "благодар"},
}

// stemOf is a crude prefix stem: the first five runes of a word.
func stemOf(w string) string {
	r := []rune(w)
	if len(r) > 5 {
		r = r[:5]
	}
	return string(r)
}

// expandStems returns the stems of keywords plus every synonym stem whose
// group one of them belongs to.
func expandStems(keywords []string) []string {
	var out []string
	for _, k := range keywords {
		out = append(out, stemOf(k))
		for _, group := range synonymGroups {
			for _, s := range group {
				if strings.HasPrefix(k, s) {
					out = append(out, group...)
					break
				}
			}
		}
	}
	return dedupStrings(out)
}

// overlaps reports whether any stem starts a word of text.
func overlaps(text string, stems []string) bool {
	for _, w := range Words(text) {
		for _, s := range stems {
			if strings.HasPrefix(w, s) {
				return true
			}
		}
	}
	return false
}

package reverie

import (
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
)

// indel is Levenshtein with substitutions priced as a delete plus an
// insert, so the ratio below equals 2·LCS/(len(a)+len(b)).
var indel = &metrics.Levenshtein{
	CaseSensitive: true,
	InsertCost:    1,
	DeleteCost:    1,
	ReplaceCost:   2,
}

// Similarity returns a 0–1 textual similarity of two strings after
// normalization. Identical normalized strings score 1; two empty strings
// also score 1.
func Similarity(a, b string) float64 {
	return rawSimilarity(Normalize(a), Normalize(b))
}

// rawSimilarity compares already-normalized strings.
func rawSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	d := indel.Distance(a, b)
	return float64(total-d) / float64(total)
}

// Match is one scored candidate from BestMatch.
type Match struct {
	Index int
	Score float64
}

// BestMatch scores a normalized query against normalized candidates and
// returns the best one. ok is false when candidates is empty. Ties keep
// the earliest candidate.
func BestMatch(query string, candidates []string) (m Match, ok bool) {
	m.Index = -1
	for i, c := range candidates {
		s := rawSimilarity(query, c)
		if !ok || s > m.Score {
			m = Match{Index: i, Score: s}
			ok = true
		}
	}
	return m, ok
}

package store

import (
	"strings"
	"unicode"
)

// trigramSimilarity mirrors pg_trgm's similarity(): each alphanumeric word is
// lower-cased, padded with two leading spaces and one trailing space, and cut
// into three-rune windows. The result is |A ∩ B| / |A ∪ B| over the distinct
// trigram sets.
func trigramSimilarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	common := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			common++
		}
	}
	union := len(ta) + len(tb) - common
	return float64(common) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			out[string(padded[i:i+3])] = struct{}{}
		}
	}
	return out
}

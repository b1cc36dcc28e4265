// Package text provides the string normalization shared by feed adapters,
// identity resolution and search.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  AFGHANISTAN ", "IRAQ", "AFGHANISTAN", ""})
//	// Returns: []string{"AFGHANISTAN", "IRAQ"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// JoinNonEmpty trims each part and joins the non-empty ones with sep.
// Interior whitespace runs are collapsed so "ERIC  " and " BADEGE" yield
// "ERIC BADEGE".
func JoinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// Fold strips diacritics, collapses whitespace and upper-cases s.
//
//	Fold(" José  Martínez ") // "JOSE MARTINEZ"
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToUpper(strings.Join(strings.Fields(folded), " "))
}

// StrongKey canonicalizes an identifier such as a tax id: folded, with every
// character that is not a letter or digit removed. Empty input stays empty.
//
//	StrongKey("abc-010101 xy9") // "ABC010101XY9"
func StrongKey(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Package normalize canonicalizes free-text titles for comparison and
// cache-key construction.
package normalize

import "strings"

// Normalize lowercases s, strips everything outside [a-z0-9 ], collapses
// internal whitespace and trims. Pure function.
func Normalize(s string) string {
	lower := strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(lower))
	lastSpace := true
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			// Any run of punctuation or whitespace collapses to one space.
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// SameEntity reports whether two titles refer to the same entity: their
// normalized forms are equal, or one contains the other as a substring.
func SameEntity(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return na == nb
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

// Tokens splits a title into normalized words of length > 1, the token set
// used for word-overlap similarity.
func Tokens(s string) []string {
	fields := strings.Fields(Normalize(s))
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

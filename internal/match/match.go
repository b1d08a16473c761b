// Package match ranks candidate records against a lookup query. Upstream
// free-text search is noisy (remakes, same-title-different-year, movie/series
// collisions); the scoring here approximates "most likely what the user is
// hovering over" without exact external identifiers.
package match

import (
	"strconv"
	"strings"

	"github.com/posterfall/ratingscout/internal/domain"
	"github.com/posterfall/ratingscout/internal/normalize"
)

// Candidate is a lightweight record as returned by a broad search, before
// its full details are fetched.
type Candidate struct {
	Title      string
	Year       string
	Type       domain.MediaType
	ExternalID string
	HasRating  bool
	HasPoster  bool
}

// TitleSimilarity returns a similarity in [0,1]: 1.0 for an exact normalized
// match, 0.8..1.0 for containment scaled by relative length, otherwise the
// word-overlap ratio of tokens longer than one character.
func TitleSimilarity(query, candidate string) float64 {
	nq, nc := normalize.Normalize(query), normalize.Normalize(candidate)
	if nq == "" || nc == "" {
		return 0
	}
	if nq == nc {
		return 1.0
	}

	if contains(nq, nc) {
		shorter, longer := len(nq), len(nc)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.8 + 0.2*float64(shorter)/float64(longer)
	}

	return overlapRatio(nq, nc)
}

// IsAcceptableMatch gates the short-circuit path: an exact or containment
// match always passes, otherwise the word-overlap ratio must reach 0.7.
func IsAcceptableMatch(query, candidate string) bool {
	nq, nc := normalize.Normalize(query), normalize.Normalize(candidate)
	if nq == "" || nc == "" {
		return false
	}
	if nq == nc || contains(nq, nc) {
		return true
	}
	return overlapRatio(nq, nc) >= 0.7
}

// Score computes the weighted rank of a candidate for a query year. Title
// similarity dominates; the year-proximity bonus separates remakes; rating
// and poster presence proxy for "well-known, not a data artifact"; the small
// movie bonus is a deliberate tie-break bias carried over from long-standing
// behavior, not a bug.
func Score(c Candidate, queryTitle, queryYear string) float64 {
	score := TitleSimilarity(queryTitle, c.Title) * 50

	score += yearBonus(queryYear, c.Year)

	if c.HasRating {
		score += 10
	}
	if c.HasPoster {
		score += 5
	}
	if c.Type == domain.MediaTypeMovie {
		score += 3
	}
	return score
}

// Best returns the highest-scoring candidate, ties broken by input order.
// Returns -1 when candidates is empty.
func Best(candidates []Candidate, queryTitle, queryYear string) int {
	best := -1
	bestScore := 0.0
	for i, c := range candidates {
		score := Score(c, queryTitle, queryYear)
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

// contains reports substring containment in either direction on already
// normalized strings.
func contains(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// overlapRatio is the Jaccard-like word overlap: shared tokens over the
// larger token count.
func overlapRatio(a, b string) float64 {
	ta, tb := normalize.Tokens(a), normalize.Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(ta))
	for _, tok := range ta {
		set[tok] = struct{}{}
	}

	shared := 0
	seen := make(map[string]struct{}, len(tb))
	for _, tok := range tb {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := set[tok]; ok {
			shared++
		}
	}

	max := len(ta)
	if len(tb) > max {
		max = len(tb)
	}
	return float64(shared) / float64(max)
}

func yearBonus(queryYear, candidateYear string) float64 {
	if queryYear == "" || candidateYear == "" {
		return 0
	}
	qy, err := strconv.Atoi(queryYear)
	if err != nil {
		return 0
	}
	cy, err := strconv.Atoi(candidateYear)
	if err != nil {
		return 0
	}

	diff := qy - cy
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return 30
	case diff == 1:
		return 20
	case diff <= 3:
		return 10
	}
	return 0
}

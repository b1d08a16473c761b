package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheKeyEquivalence(t *testing.T) {
	base := LookupQuery{Title: "The Office", Year: "2005", Type: MediaTypeSeries}.CacheKey()

	variants := []LookupQuery{
		{Title: "the office", Year: "2005", Type: MediaTypeSeries},
		{Title: "  The Office  ", Year: "2005", Type: MediaTypeSeries},
		{Title: "THE OFFICE", Year: "2005", Type: MediaTypeSeries},
	}
	for _, q := range variants {
		assert.Equal(t, base, q.CacheKey(), "query %+v", q)
	}

	// different metadata means a different, fully independent key
	assert.NotEqual(t, base, LookupQuery{Title: "The Office", Year: "2005"}.CacheKey())
	assert.NotEqual(t, base, LookupQuery{Title: "The Office", Year: "2001", Type: MediaTypeSeries}.CacheKey())
	assert.NotEqual(t, base, LookupQuery{Title: "The Office", Type: MediaTypeSeries}.CacheKey())
}

func TestCacheKeyBounded(t *testing.T) {
	long := LookupQuery{Title: strings.Repeat("a very long title ", 50), Year: "2020", Type: MediaTypeMovie}
	assert.LessOrEqual(t, len(long.CacheKey()), 120)
}

func TestMediaTypeOther(t *testing.T) {
	assert.Equal(t, MediaTypeSeries, MediaTypeMovie.Other())
	assert.Equal(t, MediaTypeMovie, MediaTypeSeries.Other())
	assert.True(t, MediaTypeMovie.Valid())
	assert.False(t, MediaType("").Valid())
	assert.False(t, MediaType("episode").Valid())
}

func TestRatingRecordHasRating(t *testing.T) {
	assert.False(t, (&RatingRecord{Title: "X", CachedAt: time.Now()}).HasRating())
	assert.True(t, (&RatingRecord{IMDBRating: "7.1"}).HasRating())
	assert.True(t, (&RatingRecord{RottenTomatoes: "90%"}).HasRating())
}

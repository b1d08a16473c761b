package domain

import (
	"strings"
	"time"

	"github.com/posterfall/ratingscout/internal/normalize"
)

// MediaType is the kind of title a lookup refers to.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// Other returns the opposite media type, used by the dual-type search path.
func (m MediaType) Other() MediaType {
	if m == MediaTypeMovie {
		return MediaTypeSeries
	}
	return MediaTypeMovie
}

// Valid reports whether m is one of the two known media types.
func (m MediaType) Valid() bool {
	return m == MediaTypeMovie || m == MediaTypeSeries
}

// LookupQuery is an imprecise, partially-known title as extracted from the
// host page. Title is required; Year and Type are hints that narrow the
// search and bound upstream cost.
type LookupQuery struct {
	Title string
	Year  string
	Type  MediaType
}

// maxCacheKeyLen bounds key length so free-text titles cannot produce
// unbounded storage keys.
const maxCacheKeyLen = 120

// CacheKey derives the deterministic storage key for q. Queries differing
// only by title case or surrounding whitespace map to the same key; queries
// with different year/type hints are independent entries.
func (q LookupQuery) CacheKey() string {
	var b strings.Builder
	b.WriteString(normalize.Normalize(q.Title))
	b.WriteString("|")
	b.WriteString(q.Year)
	b.WriteString("|")
	b.WriteString(string(q.Type))

	key := b.String()
	if len(key) > maxCacheKeyLen {
		key = key[:maxCacheKeyLen]
	}
	return key
}

// RatingRecord is a resolved rating for a title, immutable once cached.
type RatingRecord struct {
	Title          string    `json:"title"`
	Year           string    `json:"year"`
	Type           MediaType `json:"type"`
	ExternalID     string    `json:"externalId"`
	IMDBRating     string    `json:"imdbRating,omitempty"`
	RottenTomatoes string    `json:"rottenTomatoes,omitempty"`
	CachedAt       time.Time `json:"cachedAt"`
}

// HasRating reports whether the record carries at least one usable score.
// A record with neither field is treated the same as "not found".
func (r *RatingRecord) HasRating() bool {
	return r.IMDBRating != "" || r.RottenTomatoes != ""
}

// MissRecord is a negative-cache entry: the title was looked up and nothing
// usable was found. It prevents re-spending quota on the same key within the
// TTL window.
type MissRecord struct {
	QueryTitle string    `json:"queryTitle"`
	CachedAt   time.Time `json:"cachedAt"`
}

// Resolution is the terminal outcome of a successful Resolve call: exactly
// one of Record or Miss is set.
type Resolution struct {
	Record *RatingRecord
	Miss   *MissRecord
	Cached bool
}

// Found reports whether the resolution carries a rating record.
func (r *Resolution) Found() bool {
	return r.Record != nil
}

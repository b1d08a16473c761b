package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "The Office", "the office"},
		{"strips punctuation", "Spider-Man: No Way Home", "spider man no way home"},
		{"collapses whitespace", "  The   Wire  ", "the wire"},
		{"keeps digits", "Blade Runner 2049", "blade runner 2049"},
		{"unicode stripped", "Amélie", "am lie"},
		{"empty", "", ""},
		{"only punctuation", "?!...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestSameEntity(t *testing.T) {
	assert.True(t, SameEntity("The Office", "the office"))
	assert.True(t, SameEntity("The Office", "The Office (US)"))
	assert.True(t, SameEntity("Office", "The Office"))
	assert.False(t, SameEntity("The Office", "Parks and Recreation"))
	assert.False(t, SameEntity("The Office", ""))
	assert.True(t, SameEntity("", " "))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"the", "lord", "of", "the", "rings"}, Tokens("The Lord of the Rings"))
	// single-character words are dropped
	assert.Equal(t, []string{"team"}, Tokens("A Team"))
	assert.Empty(t, Tokens("?"))
}

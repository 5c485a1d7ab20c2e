package textscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_NormalizesAndFilters(t *testing.T) {
	s := NewScanner(0)

	toks := s.Tokenize("The Debug-Detective finds the root cause, fast!")
	assert.Equal(t, []string{"debug", "detective", "finds", "root", "cause", "fast"}, toks)

	// fullwidth forms fold to their ASCII equivalents through NFKC
	assert.Equal(t, []string{"debug"}, s.Tokenize("Ｄｅｂｕｇ"))

	// single runes and stop words drop out; duplicates are kept
	assert.Equal(t, []string{"go", "go"}, s.Tokenize("go a go"))
}

func TestScan_DedupesSortsAndCounts(t *testing.T) {
	s := NewScanner(0)
	st := s.Scan("logs logs parse structured logs")

	assert.Equal(t, []string{"logs", "parse", "structured"}, st.Tokens)
	assert.Equal(t, map[string]int{"logs": 3, "parse": 1, "structured": 1}, st.Freq)
	assert.Equal(t, Hash("logs logs parse structured logs"), st.Hash)
}

func TestScan_CachesByTextHash(t *testing.T) {
	s := NewScanner(2)
	a := s.Scan("parse structured logs")
	b := s.Scan("parse structured logs")
	assert.Same(t, a, b, "identical text is served from cache")
	assert.Equal(t, 1, s.CacheLen())

	s.Scan("second text entirely")
	s.Scan("third text entirely")
	assert.Equal(t, 2, s.CacheLen(), "cache stays within its bound")
}

func TestHash_IsStable(t *testing.T) {
	require.Equal(t, Hash("abc"), Hash("abc"))
	require.NotEqual(t, Hash("abc"), Hash("abd"))
	assert.Len(t, Hash(""), 64)
}

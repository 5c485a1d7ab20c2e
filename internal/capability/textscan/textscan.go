// Package textscan turns element descriptions into normalized token sets and
// frequency distributions for the similarity engine and verb extraction.
package textscan

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"
)

// DefaultCacheSize bounds the tokenization cache. Eviction only discards a
// recomputation shortcut, never index data.
const DefaultCacheSize = 500

// Stats holds the tokenization artifacts for one piece of text.
type Stats struct {
	Hash   string
	Tokens []string       // unique, sorted
	Freq   map[string]int // raw term frequency, stop words excluded
}

// Hash returns a sha256 hash (hex) of the canonical text.
func Hash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Scanner tokenizes text with NFKC normalization, case folding, and
// stop-word filtering, caching results by text hash.
type Scanner struct {
	stop  map[string]struct{}
	cache *lru.Cache[string, *Stats]
}

// NewScanner returns a scanner with the built-in stop-word list and a cache
// of cacheSize entries (DefaultCacheSize when <= 0).
func NewScanner(cacheSize int) *Scanner {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, *Stats](cacheSize)
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[w] = struct{}{}
	}
	return &Scanner{stop: stop, cache: cache}
}

// Scan tokenizes text and returns its stats, served from cache when the
// same text was seen before.
func (s *Scanner) Scan(text string) *Stats {
	h := Hash(text)
	if st, ok := s.cache.Get(h); ok {
		return st
	}
	freq := make(map[string]int)
	for _, tok := range s.Tokenize(text) {
		freq[tok]++
	}
	tokens := make([]string, 0, len(freq))
	for tok := range freq {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	st := &Stats{Hash: h, Tokens: tokens, Freq: freq}
	s.cache.Add(h, st)
	return st
}

// Tokenize splits text into normalized word tokens: NFKC-folded, lowercased,
// punctuation-split, stop words and single runes removed. Duplicates are
// kept; use Scan for set and frequency views.
func (s *Scanner) Tokenize(text string) []string {
	folded := strings.ToLower(norm.NFKC.String(text))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, isStop := s.stop[f]; isStop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// CacheLen reports how many texts are currently cached.
func (s *Scanner) CacheLen() int { return s.cache.Len() }

// stopWords is the built-in English stop-word list. High-frequency glue
// words carry no capability signal and pollute Jaccard overlap.
var stopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "been", "but", "by", "can",
	"do", "does", "for", "from", "had", "has", "have", "how", "if", "in",
	"into", "is", "it", "its", "may", "more", "most", "no", "not", "of",
	"on", "or", "our", "out", "so", "such", "than", "that", "the", "their",
	"them", "then", "there", "these", "they", "this", "to", "up", "use",
	"used", "using", "was", "we", "were", "what", "when", "which", "will",
	"with", "you", "your",
}

// Package similar scores pairwise semantic similarity between elements and
// maintains the derived similar_to edges.
//
// The metric combines Jaccard overlap of stop-word-filtered token sets with
// Shannon entropy of each side's token-frequency distribution: high overlap
// between two high-entropy descriptions is a strong same-domain signal,
// while high overlap against a near-zero-entropy description is usually
// low-information pollution and is suppressed.
package similar

import (
	"math"
)

// Relationship type emitted by this engine. Self-inverse: the mirror edge
// carries the same type.
const RelSimilarTo = "similar_to"

// Thresholds controls when a scored pair becomes a persisted edge. All
// values are configuration defaults, not trusted constants.
type Thresholds struct {
	// Combined is the minimum combined score for an edge.
	Combined float64
	// MinJaccard gates pairs before entropy is even considered.
	MinJaccard float64
	// ImbalanceRatio is the min(H)/max(H) ratio below which a pair is
	// treated as entropy-imbalanced and down-weighted.
	ImbalanceRatio float64
	// MinEntropy suppresses a pair outright when the weaker side's entropy
	// falls below it.
	MinEntropy float64
}

// DefaultThresholds returns the built-in tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Combined:       0.25,
		MinJaccard:     0.15,
		ImbalanceRatio: 0.35,
		MinEntropy:     1.0,
	}
}

// Valid reports whether every threshold is inside its legal range.
func (t Thresholds) Valid() bool {
	unit := func(v float64) bool { return v >= 0 && v <= 1 }
	return unit(t.Combined) && unit(t.MinJaccard) && unit(t.ImbalanceRatio) && t.MinEntropy >= 0
}

// Score is the result of comparing two token distributions.
type Score struct {
	Jaccard      float64
	EntropyA     float64
	EntropyB     float64
	EntropyDelta float64
	// Combined is the final gated score in [0,1]; zero means no edge.
	Combined float64
	// Suppressed is true when overlap was high but one side's entropy was
	// too low to trust the signal.
	Suppressed bool
}

// Jaccard computes |A∩B| / |A∪B| over two sorted, deduplicated token
// slices.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	var inter int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Entropy computes the Shannon entropy H = −Σ p(x)·log₂p(x) of a token
// frequency distribution, in bits.
func Entropy(freq map[string]int) float64 {
	var total int
	for _, n := range freq {
		total += n
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, n := range freq {
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// Compare scores two token distributions. Symmetric: Compare(a, b) and
// Compare(b, a) produce equal scores.
func (t Thresholds) Compare(aTokens []string, aFreq map[string]int, bTokens []string, bFreq map[string]int) Score {
	s := Score{
		Jaccard:  Jaccard(aTokens, bTokens),
		EntropyA: Entropy(aFreq),
		EntropyB: Entropy(bFreq),
	}
	s.EntropyDelta = math.Abs(s.EntropyA - s.EntropyB)

	if s.Jaccard < t.MinJaccard {
		return s
	}
	lo := math.Min(s.EntropyA, s.EntropyB)
	hi := math.Max(s.EntropyA, s.EntropyB)
	if lo < t.MinEntropy {
		s.Suppressed = true
		return s
	}
	combined := s.Jaccard * (1 - s.EntropyDelta/(hi+1))
	if hi > 0 && lo/hi < t.ImbalanceRatio {
		// likely stop-word pollution on the low side; keep but halve
		combined *= 0.5
		s.Suppressed = true
	}
	if combined >= t.Combined {
		s.Combined = combined
	}
	return s
}

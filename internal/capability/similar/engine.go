package similar

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kamusis/capindex/internal/capability"
	"github.com/kamusis/capindex/internal/capability/textscan"
)

// chunkSize is how many pairs are scored between cancellation checks.
// Long passes yield control cooperatively rather than preemptively.
const chunkSize = 256

// Engine scores element pairs and maintains similar_to edges on the index.
type Engine struct {
	scanner    *textscan.Scanner
	thresholds Thresholds
	pairCache  *lru.Cache[string, Score]
	log        *zap.Logger
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Thresholds Thresholds
	CacheSize  int
	Logger     *zap.Logger
}

// NewEngine returns an engine sharing the given scanner's token cache.
func NewEngine(scanner *textscan.Scanner, opts Options) *Engine {
	t := opts.Thresholds
	if t == (Thresholds{}) {
		t = DefaultThresholds()
	}
	size := opts.CacheSize
	if size <= 0 {
		size = textscan.DefaultCacheSize
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cache, _ := lru.New[string, Score](size)
	return &Engine{scanner: scanner, thresholds: t, pairCache: cache, log: log}
}

// Result summarizes one rescoring pass.
type Result struct {
	PairsScored  int
	EdgesAdded   int
	EdgesUpdated int
	EdgesRemoved int
}

// Rescore recomputes similarity for every pair touching one of the changed
// elements and updates similar_to edges in both directions. A nil or empty
// changed set rescores the full corpus. The pass is chunked: ctx is checked
// between chunks so callers can cancel cooperatively.
func (e *Engine) Rescore(ctx context.Context, idx *capability.Index, changed []capability.Ref, runID string) (Result, error) {
	var res Result

	refs := idx.Refs()
	changedSet := make(map[capability.Ref]bool, len(changed))
	for _, ref := range changed {
		changedSet[ref] = true
	}
	full := len(changedSet) == 0

	// Refresh cached token stats for the elements we will touch.
	for _, ref := range refs {
		entry, _ := idx.Entry(ref)
		e.refreshStats(entry)
	}

	var sinceCheck int
	for i, a := range refs {
		for _, b := range refs[i+1:] {
			if !full && !changedSet[a] && !changedSet[b] {
				continue
			}
			if sinceCheck++; sinceCheck >= chunkSize {
				sinceCheck = 0
				if err := ctx.Err(); err != nil {
					return res, err
				}
			}
			ea, _ := idx.Entry(a)
			eb, _ := idx.Entry(b)
			score := e.scorePair(ea, eb)
			res.PairsScored++
			e.applyScore(ea, eb, score, runID, &res)
		}
	}
	return res, nil
}

// ScorePair computes the combined similarity score between two elements.
// Exposed for inspection and threshold tuning; symmetric by construction.
func (e *Engine) ScorePair(a, b *capability.Entry) Score {
	e.refreshStats(a)
	e.refreshStats(b)
	return e.scorePair(a, b)
}

func (e *Engine) scorePair(a, b *capability.Entry) Score {
	key := pairKey(a.Ref(), b.Ref(), a.Cache.Hash, b.Cache.Hash)
	if s, ok := e.pairCache.Get(key); ok {
		return s
	}
	s := e.thresholds.Compare(a.Cache.Tokens, a.Cache.Freq, b.Cache.Tokens, b.Cache.Freq)
	e.pairCache.Add(key, s)
	return s
}

// refreshStats fills or refreshes the entry's cached tokenization artifacts
// when the description text changed since they were computed.
func (e *Engine) refreshStats(entry *capability.Entry) {
	text := entry.Name + "\n" + entry.Description
	if entry.Cache != nil && entry.Cache.Hash == textscan.Hash(text) {
		return
	}
	st := e.scanner.Scan(text)
	entry.Cache = &capability.TextStats{Hash: st.Hash, Tokens: st.Tokens, Freq: st.Freq}
}

func (e *Engine) applyScore(a, b *capability.Entry, s Score, runID string, res *Result) {
	if s.Combined > 0 {
		j, d := s.Jaccard, s.EntropyDelta
		meta := capability.EdgeMeta{
			Method:       capability.MethodSimilarity,
			Jaccard:      &j,
			EntropyDelta: &d,
			Run:          runID,
		}
		edge := capability.Edge{Type: RelSimilarTo, Strength: s.Combined, Meta: meta}
		added, updated := upsertEdge(a, b.Ref(), edge)
		res.EdgesAdded += added
		res.EdgesUpdated += updated
		added, updated = upsertEdge(b, a.Ref(), edge)
		res.EdgesAdded += added
		res.EdgesUpdated += updated
		return
	}
	if a.RemoveEdge(RelSimilarTo, b.Ref()) {
		res.EdgesRemoved++
	}
	if b.RemoveEdge(RelSimilarTo, a.Ref()) {
		res.EdgesRemoved++
	}
}

// upsertEdge inserts the edge, or refreshes strength and evidence on an
// existing one.
func upsertEdge(owner *capability.Entry, target capability.Ref, edge capability.Edge) (added, updated int) {
	edge.Target = target
	for i, old := range owner.Relationships {
		if old.Type == edge.Type && old.Target == target {
			if old.Strength != edge.Strength {
				updated = 1
			}
			owner.Relationships[i].Strength = edge.Strength
			owner.Relationships[i].Meta = edge.Meta
			return 0, updated
		}
	}
	owner.Relationships = append(owner.Relationships, edge)
	return 1, 0
}

func pairKey(a, b capability.Ref, hashA, hashB string) string {
	if b.String() < a.String() {
		a, b = b, a
		hashA, hashB = hashB, hashA
	}
	return fmt.Sprintf("%s|%s|%.12s|%.12s", a, b, hashA, hashB)
}

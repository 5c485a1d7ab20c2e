// Package service wires the capability index components into the discovery
// entry points the tool layer consumes: Query, ExplainRelationship, Stats,
// and the offline Rebuild pipeline.
//
// Construction is the configuration gate: the verb taxonomy, thresholds,
// and relationship registry are fully loaded inside New, before any
// discovery method exists to be called, so discovery can never race an
// unfinished configuration load.
package service

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kamusis/capindex/internal/capability"
	"github.com/kamusis/capindex/internal/capability/relate"
	"github.com/kamusis/capindex/internal/capability/similar"
	"github.com/kamusis/capindex/internal/capability/store"
	"github.com/kamusis/capindex/internal/capability/textscan"
	"github.com/kamusis/capindex/internal/capability/verbs"
	"github.com/kamusis/capindex/internal/config"
)

// DefaultLockTimeout bounds how long a rebuild waits for the index lock.
const DefaultLockTimeout = 10 * time.Second

// Service is the assembled capability index.
type Service struct {
	cfg    *config.Config
	store  *store.Store
	engine *similar.Engine
	verbs  *verbs.Manager
	relate *relate.Manager
	log    *zap.Logger
}

// New loads all configuration (taxonomy, thresholds, relationship
// registrations) and wires the components. Vocabulary errors degrade to
// the built-in taxonomy with a warning; nothing here starts discovery.
func New(cfg *config.Config, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	vocab, err := cfg.LoadVocabulary()
	if err != nil {
		log.Warn("cannot load custom vocabulary, using built-in taxonomy", zap.Error(err))
		vocab = nil
	}
	tax := verbs.NewTaxonomy(vocab)
	vm := verbs.NewManager(tax, cfg.TriggerConfidence(log), log)

	reg := relate.NewRegistry()
	st := store.New(cfg.IndexPath, store.Options{
		MaxEntriesPerType: cfg.MaxEntriesPerType,
		Logger:            log,
	})
	if len(cfg.Relationships) > 0 {
		frag := store.SchemaFragment{RelationshipTypes: make(map[string]string)}
		for _, rt := range cfg.Relationships {
			if rt.Type == "" {
				log.Warn("ignoring relationship registration without a type")
				continue
			}
			frag.RelationshipTypes[rt.Type] = rt.Inverse
		}
		st.RegisterExtension("config-relationships", frag)
	}
	for t, inv := range st.ExtensionInverses() {
		reg.Register(t, inv)
	}

	scanner := textscan.NewScanner(cfg.CacheSize)
	engine := similar.NewEngine(scanner, similar.Options{
		Thresholds: cfg.Thresholds(log),
		CacheSize:  cfg.CacheSize,
		Logger:     log,
	})

	return &Service{
		cfg:    cfg,
		store:  st,
		engine: engine,
		verbs:  vm,
		relate: relate.NewManager(reg, vm, log),
		log:    log,
	}, nil
}

// Store exposes the underlying index store (used by doctor and inspect).
func (s *Service) Store() *store.Store { return s.store }

// Relate exposes the relationship manager.
func (s *Service) Relate() *relate.Manager { return s.relate }

// Verbs exposes the verb trigger manager.
func (s *Service) Verbs() *verbs.Manager { return s.verbs }

// LoadIndex loads the current index for read-only use.
func (s *Service) LoadIndex() (*capability.Index, error) {
	idx, _, err := s.store.Load()
	return idx, err
}

// QueryOptions controls the primary discovery entry point.
type QueryOptions struct {
	// Expand walks relationship edges outward from the verb-matched seeds.
	Expand bool
	// ExpandDepth bounds the expansion (default 1).
	ExpandDepth int
	// MinScore drops candidates below the threshold after ranking.
	MinScore float64
	// Limit truncates the ranked list when positive.
	Limit int
}

// Candidate is one ranked discovery result.
type Candidate struct {
	Ref   capability.Ref
	Name  string
	Score float64
	// Verb is the canonical verb that matched; Via the query surface form.
	// Depth is 0 for verb-matched seeds and >0 for relationship-expanded
	// results, where Reached names the edge type that led here.
	Verb    string
	Via     string
	Depth   int
	Reached string
}

// Query resolves a natural-language request to a ranked, deduplicated
// candidate list: verb triggers first, then optional bounded expansion
// along relationship edges, combined by keeping each element's best score.
func (s *Service) Query(text string, opts QueryOptions) ([]Candidate, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}

	best := make(map[capability.Ref]Candidate)
	for _, vc := range s.verbs.Query(idx, text) {
		c := Candidate{Ref: vc.Ref, Score: vc.Score, Verb: vc.Verb, Via: vc.Via}
		if e, ok := idx.Entry(vc.Ref); ok {
			c.Name = e.Name
		}
		best[vc.Ref] = c
	}

	if opts.Expand {
		depth := opts.ExpandDepth
		if depth <= 0 {
			depth = 1
		}
		seeds := make([]Candidate, 0, len(best))
		for _, c := range best {
			seeds = append(seeds, c)
		}
		for _, seed := range seeds {
			connected := s.relate.ConnectedElements(idx, seed.Ref, relate.TraverseOptions{
				MaxHops:       depth,
				Bidirectional: true,
			})
			for _, ce := range connected {
				score := seed.Score * ce.Strength
				if prev, ok := best[ce.Ref]; ok && prev.Score >= score {
					continue
				}
				c := Candidate{
					Ref:     ce.Ref,
					Score:   score,
					Verb:    seed.Verb,
					Via:     seed.Via,
					Depth:   ce.Depth,
					Reached: ce.Edge.Type,
				}
				if e, ok := idx.Entry(ce.Ref); ok {
					c.Name = e.Name
				}
				best[ce.Ref] = c
			}
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		if c.Score < opts.MinScore {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Ref.String() < out[j].Ref.String()
		}
		return out[i].Score > out[j].Score
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ExplainRelationship returns the shortest relationship path between two
// elements, or ok=false when none exists within the default hop bound.
func (s *Service) ExplainRelationship(from, to string) ([]relate.PathStep, bool, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return nil, false, err
	}
	fromRef, err := resolveRef(idx, from)
	if err != nil {
		return nil, false, err
	}
	toRef, err := resolveRef(idx, to)
	if err != nil {
		return nil, false, err
	}
	path, ok := s.relate.FindPath(idx, fromRef, toRef, relate.TraverseOptions{Bidirectional: true})
	return path, ok, nil
}

// Stats summarizes the index for the surrounding tool layer.
type Stats struct {
	ElementCount      int
	RelationshipCount int
	CountsByType      map[string]int
	Relationships     map[string]relate.TypeStats
}

// Stats returns element and relationship counts.
func (s *Service) Stats() (Stats, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		ElementCount:      idx.ElementCount(),
		RelationshipCount: idx.RelationshipCount(),
		CountsByType:      idx.CountsByType(),
		Relationships:     s.relate.RelationshipStats(idx),
	}, nil
}

// resolveRef accepts "type:id" or a bare id, searching all types for the
// latter and picking the smallest match for determinism.
func resolveRef(idx *capability.Index, s string) (capability.Ref, error) {
	if ref, err := capability.ParseRef(s); err == nil {
		return ref, nil
	}
	var found []capability.Ref
	for _, ref := range idx.Refs() {
		if ref.ID == s {
			found = append(found, ref)
		}
	}
	if len(found) == 0 {
		return capability.Ref{}, fmt.Errorf("%q: %w", s, store.ErrNotFound)
	}
	return found[0], nil
}

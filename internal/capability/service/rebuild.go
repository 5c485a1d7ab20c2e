package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kamusis/capindex/internal/capability"
	"github.com/kamusis/capindex/internal/capability/relate"
	"github.com/kamusis/capindex/internal/capability/similar"
	"github.com/kamusis/capindex/internal/catalog"
)

// RebuildResult reports one maintenance run.
type RebuildResult struct {
	Run string
	// Elements is the catalog size after the sync; Added/Updated/Removed
	// describe the index delta against it.
	Elements int
	Added    int
	Updated  int
	Removed  int
	Triggers int

	Discovery  relate.Result
	Similarity similar.Result

	CatalogSkipped []error
	SaveWarnings   []string
	// Recovered is set when the previous index file was corrupt and had to
	// be quarantined before this run.
	Recovered string
}

// Rebuild runs the offline maintenance pipeline as one locked unit:
// load → sync with the catalog → extract triggers → discover relationships
// → rescore similarity → save atomically. When full is false, similarity is
// rescored only for pairs touching changed elements. Per-element analysis
// failures accumulate in the result instead of aborting the run.
func (s *Service) Rebuild(ctx context.Context, full bool) (*RebuildResult, error) {
	res := &RebuildResult{Run: uuid.New().String()}
	err := s.store.WithLock(DefaultLockTimeout, func() error {
		idx, report, err := s.store.Load()
		if err != nil {
			return err
		}
		if report.Corrupt != nil {
			res.Recovered = report.Corrupt.Quarantine
		}

		elements, skipped, err := catalog.Discover(s.cfg.CatalogPath)
		if err != nil {
			return err
		}
		res.CatalogSkipped = skipped
		res.Elements = len(elements)

		changed := s.syncCatalog(idx, elements, res)

		for _, el := range elements {
			entry, ok := idx.Entry(el.Ref)
			if !ok {
				continue
			}
			if s.verbs.ExtractTriggers(entry, el.Triggers) {
				res.Triggers++
			}
		}

		res.Discovery, err = s.relate.Discover(ctx, idx, res.Run)
		if err != nil {
			return err
		}

		// No changed elements means no pair can have a new score; only a
		// full rebuild pays for the complete pairwise pass.
		if full || len(changed) > 0 {
			rescore := changed
			if full {
				rescore = nil
			}
			res.Similarity, err = s.engine.Rescore(ctx, idx, rescore, res.Run)
			if err != nil {
				return err
			}
		}

		idx.Touch(nowFunc())
		saveRes, err := s.store.Save(idx)
		if err != nil {
			return fmt.Errorf("cannot save index: %w", err)
		}
		res.SaveWarnings = saveRes.Warnings
		return nil
	})
	if err != nil {
		return res, err
	}
	s.log.Info("rebuild complete",
		zap.String("run", res.Run),
		zap.Int("elements", res.Elements),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("removed", res.Removed),
		zap.Int("pattern_edges", res.Discovery.PatternEdges),
		zap.Int("verb_edges", res.Discovery.VerbEdges),
		zap.Int("similarity_pairs", res.Similarity.PairsScored))
	return res, nil
}

// syncCatalog reconciles the index with the catalog and returns the refs
// whose descriptive text changed (including brand-new elements). Changed
// elements get their derived triggers and edges reset so re-discovery works
// from clean state.
func (s *Service) syncCatalog(idx *capability.Index, elements []catalog.Element, res *RebuildResult) []capability.Ref {
	var changed []capability.Ref
	present := make(map[capability.Ref]bool, len(elements))

	for _, el := range elements {
		present[el.Ref] = true
		entry, ok := idx.Entry(el.Ref)
		if !ok {
			entry = &capability.Entry{
				ID:          el.Ref.ID,
				Type:        el.Ref.Type,
				Name:        el.Name,
				Description: el.Description,
				Custom:      el.Custom,
			}
			idx.Put(entry)
			changed = append(changed, el.Ref)
			res.Added++
			continue
		}
		if entry.Name != el.Name || entry.Description != el.Description {
			entry.Name = el.Name
			entry.Description = el.Description
			entry.Custom = el.Custom
			entry.Cache = nil
			entry.Triggers = nil
			s.relate.ResetDerived(idx, el.Ref,
				capability.MethodPattern, capability.MethodVerb)
			changed = append(changed, el.Ref)
			res.Updated++
			continue
		}
		entry.Custom = el.Custom
	}

	for _, ref := range idx.Refs() {
		if present[ref] {
			continue
		}
		s.relate.ResetDerived(idx, ref,
			capability.MethodPattern, capability.MethodVerb, capability.MethodSimilarity)
		idx.Remove(ref)
		res.Removed++
	}
	return changed
}

// nowFunc is swapped in tests for reproducible timestamps.
var nowFunc = time.Now

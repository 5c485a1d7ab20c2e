package relate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kamusis/capindex/internal/capability"
	"github.com/kamusis/capindex/internal/capability/verbs"
)

// Manager discovers relationships and answers graph queries. The two
// discovery methods are fault-isolated: a failure analyzing one element is
// recorded and never aborts the rest of the batch.
type Manager struct {
	reg   *Registry
	verbs *verbs.Manager // nil disables verb-based discovery
	log   *zap.Logger
}

// NewManager wires a relationship manager. The verb manager is optional;
// both it and the registry must be fully constructed before discovery runs.
func NewManager(reg *Registry, vm *verbs.Manager, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{reg: reg, verbs: vm, log: log}
}

// Registry returns the manager's relationship-type registry.
func (m *Manager) Registry() *Registry { return m.reg }

// Issue records one element whose analysis failed.
type Issue struct {
	Ref   capability.Ref
	Stage string // "pattern" or "verb"
	Err   error
}

func (i Issue) String() string {
	return fmt.Sprintf("%s [%s]: %v", i.Ref, i.Stage, i.Err)
}

// Result summarizes one discovery run.
type Result struct {
	Run          string
	PatternEdges int
	VerbEdges    int
	// SkippedUnknown counts edges dropped because their relationship type
	// is not registered.
	SkippedUnknown int
	Issues         []Issue
}

// Discover runs pattern-based and verb-based discovery over the whole
// index. The two methods are independent; a failure in one never blocks
// the other. Re-running on an unchanged index adds nothing: inserts are
// guarded by structural (source, type, target) equality, and mirroring is
// part of the same guard.
func (m *Manager) Discover(ctx context.Context, idx *capability.Index, runID string) (Result, error) {
	res := Result{Run: runID}
	if err := m.discoverPatterns(ctx, idx, runID, &res); err != nil {
		return res, err
	}
	if m.verbs != nil {
		if err := m.discoverVerbs(ctx, idx, runID, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (m *Manager) discoverPatterns(ctx context.Context, idx *capability.Index, runID string, res *Result) error {
	targets := buildNameLookup(idx)
	for _, ref := range idx.Refs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.patternsForElement(idx, targets, ref, runID, res); err != nil {
			res.Issues = append(res.Issues, Issue{Ref: ref, Stage: "pattern", Err: err})
		}
	}
	return nil
}

// patternsForElement analyzes one element's text in isolation; a panic or
// error here is reported as an issue for this element only.
func (m *Manager) patternsForElement(idx *capability.Index, targets map[string][]capability.Ref, ref capability.Ref, runID string, res *Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic analyzing element text: %v", r)
		}
	}()
	entry, _ := idx.Entry(ref)
	for _, pm := range scanPatterns(entry.Description) {
		target, ok := resolveTarget(targets, pm.target)
		if !ok || target == ref {
			continue
		}
		edge := capability.Edge{
			Type:     pm.relType,
			Target:   target,
			Strength: PatternStrength,
			Meta: capability.EdgeMeta{
				Method:  capability.MethodPattern,
				Pattern: pm.matched,
				Run:     runID,
			},
		}
		added, insErr := m.Insert(idx, ref, edge)
		if insErr != nil {
			res.SkippedUnknown++
			m.log.Warn("skipping edge", zap.String("from", ref.String()),
				zap.String("type", pm.relType), zap.Error(insErr))
			continue
		}
		if added {
			res.PatternEdges++
		}
	}
	return nil
}

func (m *Manager) discoverVerbs(ctx context.Context, idx *capability.Index, runID string, res *Result) error {
	reverse := m.verbs.ReverseMap(idx)

	type pair struct{ a, b capability.Ref }
	shared := make(map[pair][]string)
	weakest := make(map[pair]float64)

	verbsSorted := make([]string, 0, len(reverse))
	for v := range reverse {
		verbsSorted = append(verbsSorted, v)
	}
	sort.Strings(verbsSorted)

	for _, verb := range verbsSorted {
		hits := reverse[verb]
		if len(hits) < 2 {
			continue
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].Ref.String() < hits[j].Ref.String() })
		for i := 0; i < len(hits); i++ {
			for j := i + 1; j < len(hits); j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				p := pair{a: hits[i].Ref, b: hits[j].Ref}
				shared[p] = append(shared[p], verb)
				weak := hits[i].Confidence
				if hits[j].Confidence < weak {
					weak = hits[j].Confidence
				}
				if prev, ok := weakest[p]; !ok || weak < prev {
					weakest[p] = weak
				}
			}
		}
	}

	pairs := make([]pair, 0, len(shared))
	for p := range shared {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a.String() < pairs[j].a.String()
		}
		return pairs[i].b.String() < pairs[j].b.String()
	})

	tax := m.verbs.Taxonomy()
	for _, p := range pairs {
		verbsShared := shared[p]
		sort.Strings(verbsShared)
		relType := edgeTypeForVerbs(tax, verbsShared)
		strength := float64(len(verbsShared)) * weakest[p]
		if strength > 1.0 {
			strength = 1.0
		}
		edge := capability.Edge{
			Type:     relType,
			Target:   p.b,
			Strength: strength,
			Meta: capability.EdgeMeta{
				Method:      capability.MethodVerb,
				SharedVerbs: verbsShared,
				Run:         runID,
			},
		}
		added, err := m.Insert(idx, p.a, edge)
		if err != nil {
			res.SkippedUnknown++
			m.log.Warn("skipping edge", zap.String("from", p.a.String()),
				zap.String("type", relType), zap.Error(err))
			continue
		}
		if added {
			res.VerbEdges++
		}
	}
	return nil
}

// edgeTypeForVerbs derives the edge type from the first shared verb whose
// category has a mapping, falling back to shares_verb.
func edgeTypeForVerbs(tax *verbs.Taxonomy, sharedVerbs []string) string {
	for _, v := range sharedVerbs {
		if t, ok := categoryEdge[tax.Category(v)]; ok {
			return t
		}
	}
	return "shares_verb"
}

// Insert adds an edge of a registered type, mirroring the inverse edge on
// the target when the type declares one. Both writes are guarded by the
// structural-equality check, so re-insertion is a no-op in both directions.
// Unknown relationship types are rejected; the caller logs and continues.
// Reports whether the forward edge was newly added.
func (m *Manager) Insert(idx *capability.Index, from capability.Ref, edge capability.Edge) (bool, error) {
	if !m.reg.Known(edge.Type) {
		return false, fmt.Errorf("unknown relationship type %q", edge.Type)
	}
	src, ok := idx.Entry(from)
	if !ok {
		return false, fmt.Errorf("source %s: element not found", from)
	}
	dst, ok := idx.Entry(edge.Target)
	if !ok {
		return false, fmt.Errorf("target %s: element not found", edge.Target)
	}
	added := src.AddEdge(edge)
	if inv := m.reg.Inverse(edge.Type); inv != "" {
		mirror := capability.Edge{
			Type:     inv,
			Target:   from,
			Strength: edge.Strength,
			Meta:     edge.Meta,
		}
		dst.AddEdge(mirror)
	}
	return added, nil
}

// ResetDerived removes every edge discovered by one of the given methods
// that touches ref, in both directions and including mirrors, ahead of
// re-discovery after the element's text changed.
func (m *Manager) ResetDerived(idx *capability.Index, ref capability.Ref, methods ...string) {
	match := func(method string) bool {
		for _, want := range methods {
			if method == want {
				return true
			}
		}
		return false
	}
	_ = idx.Each(func(e *capability.Entry) error {
		self := e.Ref() == ref
		kept := e.Relationships[:0]
		for _, edge := range e.Relationships {
			if match(edge.Meta.Method) && (self || edge.Target == ref) {
				continue
			}
			kept = append(kept, edge)
		}
		e.Relationships = kept
		return nil
	})
}

// buildNameLookup maps normalized element ids and names to their refs.
func buildNameLookup(idx *capability.Index) map[string][]capability.Ref {
	out := make(map[string][]capability.Ref)
	_ = idx.Each(func(e *capability.Entry) error {
		ref := e.Ref()
		out[strings.ToLower(e.ID)] = append(out[strings.ToLower(e.ID)], ref)
		name := normSlug(e.Name)
		if name != "" && name != strings.ToLower(e.ID) {
			out[name] = append(out[name], ref)
		}
		return nil
	})
	return out
}

// resolveTarget picks the lexicographically smallest ref when a slug is
// ambiguous across element types, keeping discovery deterministic.
func resolveTarget(lookup map[string][]capability.Ref, slug string) (capability.Ref, bool) {
	refs := lookup[slug]
	if len(refs) == 0 {
		return capability.Ref{}, false
	}
	best := refs[0]
	for _, r := range refs[1:] {
		if r.String() < best.String() {
			best = r
		}
	}
	return best, true
}

func normSlug(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(s)), "-"))
}

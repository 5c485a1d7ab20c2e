package relate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/capindex/internal/capability"
	"github.com/kamusis/capindex/internal/capability/verbs"
)

func sref(id string) capability.Ref { return capability.Ref{Type: "skills", ID: id} }

// assertMirrored checks that every edge of a mirrored type has its inverse
// present on the target.
func assertMirrored(t *testing.T, idx *capability.Index, reg *Registry) {
	t.Helper()
	_ = idx.Each(func(e *capability.Entry) error {
		for _, edge := range e.Relationships {
			inv := reg.Inverse(edge.Type)
			if inv == "" {
				continue
			}
			target, ok := idx.Entry(edge.Target)
			require.True(t, ok, "edge %s → %s points at a live element", edge.Type, edge.Target)
			assert.True(t, target.HasEdge(inv, e.Ref()),
				"%s → %s %s is missing its %s mirror", e.Ref(), edge.Target, edge.Type, inv)
		}
		return nil
	})
}

func TestDiscover_PatternsCreateMirroredEdges(t *testing.T) {
	idx := capability.New()
	idx.Put(&capability.Entry{Type: "skills", ID: "analyzer", Name: "Analyzer",
		Description: "Uses the log-reader to trace problems. Works with the metrics-panel."})
	idx.Put(&capability.Entry{Type: "skills", ID: "log-reader", Name: "Log Reader"})
	idx.Put(&capability.Entry{Type: "skills", ID: "metrics-panel", Name: "Metrics Panel"})

	reg := NewRegistry()
	m := NewManager(reg, nil, nil)

	res, err := m.Discover(context.Background(), idx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.PatternEdges)
	assert.Zero(t, res.VerbEdges, "no verb manager wired")
	assert.Empty(t, res.Issues)

	a, _ := idx.Entry(sref("analyzer"))
	edge, ok := a.FindEdge("uses", sref("log-reader"))
	require.True(t, ok)
	assert.Equal(t, PatternStrength, edge.Strength)
	assert.Equal(t, capability.MethodPattern, edge.Meta.Method)
	assert.Contains(t, edge.Meta.Pattern, "log-reader")
	assert.Equal(t, "run-1", edge.Meta.Run)

	reader, _ := idx.Entry(sref("log-reader"))
	assert.True(t, reader.HasEdge("used_by", sref("analyzer")))
	assert.True(t, a.HasEdge("related_to", sref("metrics-panel")))
	assertMirrored(t, idx, reg)
}

func TestDiscover_IsIdempotent(t *testing.T) {
	idx := capability.New()
	idx.Put(&capability.Entry{Type: "skills", ID: "analyzer",
		Description: "Depends on the log-reader"})
	idx.Put(&capability.Entry{Type: "skills", ID: "log-reader"})

	m := NewManager(NewRegistry(), nil, nil)
	ctx := context.Background()

	first, err := m.Discover(ctx, idx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.PatternEdges)
	count := idx.RelationshipCount()

	second, err := m.Discover(ctx, idx, "run-2")
	require.NoError(t, err)
	assert.Zero(t, second.PatternEdges)
	assert.Equal(t, count, idx.RelationshipCount())
}

func TestDiscover_VerbEdgesFromSharedTriggers(t *testing.T) {
	idx := capability.New()
	alpha := &capability.Entry{Type: "skills", ID: "alpha", Name: "Alpha"}
	alpha.AddTrigger(capability.Trigger{Verb: "debug", Tier: capability.TierExplicit, Confidence: 0.9})
	idx.Put(alpha)
	beta := &capability.Entry{Type: "skills", ID: "beta", Name: "Beta"}
	beta.AddTrigger(capability.Trigger{Verb: "debug", Tier: capability.TierDescription, Confidence: 0.4})
	idx.Put(beta)

	reg := NewRegistry()
	vm := verbs.NewManager(verbs.NewTaxonomy(nil), verbs.DefaultConfidence(), nil)
	m := NewManager(reg, vm, nil)

	res, err := m.Discover(context.Background(), idx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.VerbEdges)

	// shared debugging verb suggests helps_debug, strength capped by the
	// weakest side's confidence
	edge, ok := alpha.FindEdge("helps_debug", sref("beta"))
	require.True(t, ok)
	assert.InDelta(t, 0.4, edge.Strength, 1e-9)
	assert.Equal(t, capability.MethodVerb, edge.Meta.Method)
	assert.Equal(t, []string{"debug"}, edge.Meta.SharedVerbs)
	assert.True(t, beta.HasEdge("debugged_by", sref("alpha")))
	assertMirrored(t, idx, reg)
}

func TestDiscover_SharedUnknownVerbFallsBackToSharesVerb(t *testing.T) {
	idx := capability.New()
	for _, id := range []string{"alpha", "beta"} {
		e := &capability.Entry{Type: "skills", ID: id}
		e.AddTrigger(capability.Trigger{Verb: "frobnicate", Tier: capability.TierExplicit, Confidence: 0.9})
		idx.Put(e)
	}
	vm := verbs.NewManager(verbs.NewTaxonomy(nil), verbs.DefaultConfidence(), nil)
	m := NewManager(NewRegistry(), vm, nil)

	res, err := m.Discover(context.Background(), idx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.VerbEdges)

	a, _ := idx.Entry(sref("alpha"))
	edge, ok := a.FindEdge("shares_verb", sref("beta"))
	require.True(t, ok)
	assert.InDelta(t, 0.9, edge.Strength, 1e-9)
	b, _ := idx.Entry(sref("beta"))
	assert.True(t, b.HasEdge("shares_verb", sref("alpha")))
}

func TestInsert_RejectsUnknownTypesAndMissingElements(t *testing.T) {
	idx := capability.New()
	idx.Put(&capability.Entry{Type: "skills", ID: "alpha"})
	idx.Put(&capability.Entry{Type: "skills", ID: "beta"})
	m := NewManager(NewRegistry(), nil, nil)

	_, err := m.Insert(idx, sref("alpha"), capability.Edge{Type: "mentors", Target: sref("beta")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown relationship type "mentors"`)

	_, err = m.Insert(idx, sref("ghost"), capability.Edge{Type: "uses", Target: sref("beta")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element not found")

	_, err = m.Insert(idx, sref("alpha"), capability.Edge{Type: "uses", Target: sref("ghost")})
	require.Error(t, err)

	added, err := m.Insert(idx, sref("alpha"), capability.Edge{Type: "uses", Target: sref("beta"), Strength: 0.7})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = m.Insert(idx, sref("alpha"), capability.Edge{Type: "uses", Target: sref("beta"), Strength: 0.7})
	require.NoError(t, err)
	assert.False(t, added, "re-insertion is a no-op")
}

func TestPatternsForElement_RecoversFromPanics(t *testing.T) {
	idx := capability.New()
	m := NewManager(NewRegistry(), nil, nil)

	// an element vanishing mid-run must surface as an error, not a crash
	res := &Result{}
	err := m.patternsForElement(idx, map[string][]capability.Ref{}, sref("ghost"), "run-1", res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestResetDerived_StripsOnlyMatchingMethods(t *testing.T) {
	idx := capability.New()
	a := &capability.Entry{Type: "skills", ID: "alpha"}
	b := &capability.Entry{Type: "skills", ID: "beta"}
	a.AddEdge(capability.Edge{Type: "uses", Target: sref("beta"),
		Meta: capability.EdgeMeta{Method: capability.MethodPattern}})
	a.AddEdge(capability.Edge{Type: "similar_to", Target: sref("beta"),
		Meta: capability.EdgeMeta{Method: capability.MethodSimilarity}})
	b.AddEdge(capability.Edge{Type: "used_by", Target: sref("alpha"),
		Meta: capability.EdgeMeta{Method: capability.MethodPattern}})
	idx.Put(a)
	idx.Put(b)

	m := NewManager(NewRegistry(), nil, nil)
	m.ResetDerived(idx, sref("alpha"), capability.MethodPattern)

	assert.False(t, a.HasEdge("uses", sref("beta")))
	assert.False(t, b.HasEdge("used_by", sref("alpha")), "mirror on the other element goes too")
	assert.True(t, a.HasEdge("similar_to", sref("beta")), "other methods are untouched")
}

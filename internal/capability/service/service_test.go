package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamusis/capindex/internal/capability"
	"github.com/kamusis/capindex/internal/capability/store"
	"github.com/kamusis/capindex/internal/config"
)

// newTestService builds a service over a temp catalog and index. The
// catalog starts with two skills that share the verb "test" and nothing
// else, so discovery produces exactly one helps_test pair.
func newTestService(t *testing.T) (*Service, string, string) {
	t.Helper()
	dir := t.TempDir()
	catalogDir := filepath.Join(dir, "elements")
	indexPath := filepath.Join(dir, "capability-index.yaml")

	writeCatalogElement(t, catalogDir, "skills", "debug-detective", `---
name: Debug Detective
description: Track down root causes in failing builds and flaky tests
triggers:
  - debug
---

Finds the root cause of broken builds.
`)
	writeCatalogElement(t, catalogDir, "skills", "test-writer", `---
name: Test Writer
description: Write and exercise unit tests for new code
---
`)

	svc, err := New(&config.Config{CatalogPath: catalogDir, IndexPath: indexPath}, zap.NewNop())
	require.NoError(t, err)
	return svc, catalogDir, indexPath
}

func writeCatalogElement(t *testing.T, root, elemType, id, content string) {
	t.Helper()
	dir := filepath.Join(root, elemType, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ELEMENT.md"), []byte(content), 0o644))
}

func TestRebuild_FreshCatalog(t *testing.T) {
	svc, _, _ := newTestService(t)

	res, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Run)
	assert.Empty(t, res.Recovered)
	assert.Empty(t, res.CatalogSkipped)
	assert.Equal(t, 2, res.Elements)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Removed)
	assert.Equal(t, 2, res.Triggers)

	assert.Equal(t, 0, res.Discovery.PatternEdges)
	assert.Equal(t, 1, res.Discovery.VerbEdges)
	assert.Empty(t, res.Discovery.Issues)
	assert.Equal(t, 0, res.Similarity.EdgesAdded, "descriptions barely overlap, no similarity edge")

	idx, err := svc.LoadIndex()
	require.NoError(t, err)

	detective, ok := idx.Entry(capability.Ref{Type: "skills", ID: "debug-detective"})
	require.True(t, ok)
	assert.Equal(t, "Debug Detective", detective.Name)
	require.Len(t, detective.Relationships, 1)
	edge := detective.Relationships[0]
	assert.Equal(t, "helps_test", edge.Type)
	assert.Equal(t, capability.Ref{Type: "skills", ID: "test-writer"}, edge.Target)
	assert.InDelta(t, 0.4, edge.Strength, 1e-9, "strength is the weakest shared trigger confidence")
	assert.Equal(t, capability.MethodVerb, edge.Meta.Method)
	assert.Equal(t, []string{"test"}, edge.Meta.SharedVerbs)
	assert.Equal(t, res.Run, edge.Meta.Run)

	writer, ok := idx.Entry(capability.Ref{Type: "skills", ID: "test-writer"})
	require.True(t, ok)
	require.Len(t, writer.Relationships, 1)
	assert.Equal(t, "tested_by", writer.Relationships[0].Type)
	assert.Equal(t, detective.Ref(), writer.Relationships[0].Target)
}

func TestRebuild_SecondRunIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)

	res, err := svc.Rebuild(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Removed)
	assert.Equal(t, 0, res.Triggers)
	assert.Equal(t, 0, res.Discovery.VerbEdges)
	assert.Equal(t, 0, res.Similarity.EdgesAdded)
	assert.Equal(t, 0, res.Similarity.EdgesRemoved)
}

func TestRebuild_NoChangeIncrementalSkipsSimilarity(t *testing.T) {
	svc, _, _ := newTestService(t)
	first, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Similarity.PairsScored)

	res, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Similarity.PairsScored, "unchanged catalog must not pay the pairwise pass")

	full, err := svc.Rebuild(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, full.Similarity.PairsScored)
}

func TestRebuild_RemovedElementDropsItsEdges(t *testing.T) {
	svc, catalogDir, _ := newTestService(t)
	_, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(catalogDir, "skills", "test-writer")))
	res, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Elements)
	assert.Equal(t, 1, res.Removed)

	idx, err := svc.LoadIndex()
	require.NoError(t, err)
	assert.Equal(t, 1, idx.ElementCount())
	detective, ok := idx.Entry(capability.Ref{Type: "skills", ID: "debug-detective"})
	require.True(t, ok)
	assert.Empty(t, detective.Relationships, "edges to the removed element are stripped")
}

func TestRebuild_QuarantinesCorruptIndex(t *testing.T) {
	svc, _, indexPath := newTestService(t)
	require.NoError(t, os.WriteFile(indexPath, []byte("{{{ not yaml"), 0o644))

	res, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)
	require.NotEmpty(t, res.Recovered)
	_, statErr := os.Stat(res.Recovered)
	assert.NoError(t, statErr, "quarantined file kept on disk")
	assert.Equal(t, 2, res.Added, "rebuild starts over from the catalog")
}

func TestQuery_RanksVerbMatches(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)

	got, err := svc.Query("help me troubleshoot this build", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, capability.Ref{Type: "skills", ID: "debug-detective"}, got[0].Ref)
	assert.Equal(t, "Debug Detective", got[0].Name)
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)
	assert.Equal(t, "debug", got[0].Verb)
	assert.Equal(t, "troubleshoot", got[0].Via)
	assert.Equal(t, 0, got[0].Depth)
}

func TestQuery_ExpandWalksRelationships(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)

	got, err := svc.Query("help me troubleshoot this build", QueryOptions{Expand: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "debug-detective", got[0].Ref.ID)
	assert.Equal(t, "test-writer", got[1].Ref.ID)
	assert.InDelta(t, 0.36, got[1].Score, 1e-9, "seed score scaled by edge strength")
	assert.Equal(t, 1, got[1].Depth)
	assert.Equal(t, "helps_test", got[1].Reached)

	filtered, err := svc.Query("help me troubleshoot this build", QueryOptions{Expand: true, MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "debug-detective", filtered[0].Ref.ID)

	limited, err := svc.Query("help me troubleshoot this build", QueryOptions{Expand: true, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestQuery_NoVerbInText(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)

	got, err := svc.Query("hello there", QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExplainRelationship_BareIDsAndPath(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)

	path, ok, err := svc.ExplainRelationship("debug-detective", "test-writer")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, path, 1)
	assert.Equal(t, capability.Ref{Type: "skills", ID: "debug-detective"}, path[0].From)
	assert.Equal(t, "helps_test", path[0].Edge.Type)
	assert.Equal(t, capability.MethodVerb, path[0].Edge.Meta.Method)

	same, ok, err := svc.ExplainRelationship("skills:debug-detective", "debug-detective")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, same)

	_, _, err = svc.ExplainRelationship("debug-detective", "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStats_CountsElementsAndEdges(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Rebuild(context.Background(), false)
	require.NoError(t, err)

	st, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.ElementCount)
	assert.Equal(t, 2, st.RelationshipCount, "forward edge plus its mirror")
	assert.Equal(t, map[string]int{"skills": 2}, st.CountsByType)
	require.Contains(t, st.Relationships, "helps_test")
	assert.Equal(t, 1, st.Relationships["helps_test"].Count)
	assert.InDelta(t, 0.4, st.Relationships["helps_test"].MeanStrength, 1e-9)
}

func TestService_CustomRelationshipConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		CatalogPath: filepath.Join(dir, "elements"),
		IndexPath:   filepath.Join(dir, "capability-index.yaml"),
		Relationships: []config.RelationshipType{
			{Type: "mentors", Inverse: "mentored_by"},
		},
	}
	svc, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, svc.Relate().Registry().Known("mentors"))
	assert.Equal(t, "mentors", svc.Relate().Registry().Inverse("mentored_by"))
}

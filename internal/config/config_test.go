package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamusis/capindex/internal/capability/similar"
	"github.com/kamusis/capindex/internal/capability/verbs"
)

func testHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestDefaultConfig_PathsUnderCapindexDir(t *testing.T) {
	home := testHome(t)
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".capindex", "elements"), cfg.CatalogPath)
	assert.Equal(t, filepath.Join(home, ".capindex", "capability-index.yaml"), cfg.IndexPath)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	home := testHome(t)
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	cfg.MaxEntriesPerType = 500
	cfg.Relationships = []RelationshipType{{Type: "mentors", Inverse: "mentored_by"}}
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.CatalogPath, loaded.CatalogPath)
	assert.Equal(t, 500, loaded.MaxEntriesPerType)
	require.Len(t, loaded.Relationships, 1)
	assert.Equal(t, "mentors", loaded.Relationships[0].Type)

	_, err = os.Stat(filepath.Join(home, ".capindex", "capindex.yaml"))
	assert.NoError(t, err)
}

func TestLoad_ExpandsTildePathsAndDefaultsIndexPath(t *testing.T) {
	home := testHome(t)
	require.NoError(t, Save(&Config{CatalogPath: "~/catalog"}))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "catalog"), loaded.CatalogPath)
	assert.Equal(t, filepath.Join(home, ".capindex", "capability-index.yaml"), loaded.IndexPath)
}

func TestLoad_MissingConfigErrors(t *testing.T) {
	testHome(t)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read config")
}

func TestThresholds_FallsBackOnInvalidValues(t *testing.T) {
	log := zap.NewNop()
	cfg := &Config{}
	assert.Equal(t, similar.DefaultThresholds(), cfg.Thresholds(log))

	cfg.Similarity = &Similarity{CombinedThreshold: 0.3, MinJaccard: 0.2, ImbalanceRatio: 0.4, MinEntropy: 1.5}
	got := cfg.Thresholds(log)
	assert.Equal(t, 0.3, got.Combined)
	assert.Equal(t, 1.5, got.MinEntropy)

	cfg.Similarity.MinJaccard = 7 // outside [0,1]
	assert.Equal(t, similar.DefaultThresholds(), cfg.Thresholds(log))
}

func TestTriggerConfidence_FallsBackOnInvalidValues(t *testing.T) {
	log := zap.NewNop()
	cfg := &Config{}
	assert.Equal(t, verbs.DefaultConfidence(), cfg.TriggerConfidence(log))

	cfg.Confidence = &Confidence{Explicit: 1.0, NameBased: 0.5, DescriptionBased: 0.3, SynonymMultiplier: 0.7}
	got := cfg.TriggerConfidence(log)
	assert.Equal(t, 0.5, got.Name)

	cfg.Confidence.SynonymMultiplier = -1
	assert.Equal(t, verbs.DefaultConfidence(), cfg.TriggerConfidence(log))
}

func TestLoadVocabulary(t *testing.T) {
	home := testHome(t)

	cfg := &Config{}
	v, err := cfg.LoadVocabulary()
	require.NoError(t, err)
	assert.Nil(t, v, "no path configured means no custom vocabulary")

	path := filepath.Join(home, "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verbs:\n  orchestrate: deployment\nsynonyms:\n  craft: create\n"), 0o644))
	cfg.VocabularyPath = "~/vocab.yaml"
	v, err = cfg.LoadVocabulary()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "deployment", v.Verbs["orchestrate"])
	assert.Equal(t, "create", v.Synonyms["craft"])

	require.NoError(t, os.WriteFile(path, []byte("verbs: [broken"), 0o644))
	_, err = cfg.LoadVocabulary()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML")
}

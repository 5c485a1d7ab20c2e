// Package config owns ~/.capindex/capindex.yaml: index location, catalog
// location, thresholds, caps, and optional custom vocabulary.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kamusis/capindex/internal/capability/similar"
	"github.com/kamusis/capindex/internal/capability/verbs"
)

// RelationshipType registers a custom relationship type from configuration.
type RelationshipType struct {
	Type    string `yaml:"type"`
	Inverse string `yaml:"inverse,omitempty"`
}

// Similarity mirrors similar.Thresholds in YAML form.
type Similarity struct {
	CombinedThreshold float64 `yaml:"combined_threshold"`
	MinJaccard        float64 `yaml:"min_jaccard"`
	ImbalanceRatio    float64 `yaml:"imbalance_ratio"`
	MinEntropy        float64 `yaml:"min_entropy"`
}

// Confidence mirrors verbs.Confidence in YAML form.
type Confidence struct {
	Explicit          float64 `yaml:"explicit"`
	NameBased         float64 `yaml:"name_based"`
	DescriptionBased  float64 `yaml:"description_based"`
	SynonymMultiplier float64 `yaml:"synonym_multiplier"`
}

// Config is the in-memory representation of ~/.capindex/capindex.yaml.
type Config struct {
	CatalogPath       string             `yaml:"catalog_path"`
	IndexPath         string             `yaml:"index_path,omitempty"`
	MaxEntriesPerType int                `yaml:"max_entries_per_type,omitempty"`
	CacheSize         int                `yaml:"cache_size,omitempty"`
	VocabularyPath    string             `yaml:"vocabulary_path,omitempty"`
	Similarity        *Similarity        `yaml:"similarity,omitempty"`
	Confidence        *Confidence        `yaml:"confidence,omitempty"`
	Relationships     []RelationshipType `yaml:"relationships,omitempty"`
}

// CapindexDir returns the absolute path to ~/.capindex/.
func CapindexDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".capindex"), nil
}

// ConfigPath returns the absolute path to ~/.capindex/capindex.yaml.
func ConfigPath() (string, error) {
	dir, err := CapindexDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "capindex.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultConfig returns the config written on first capindex init.
func DefaultConfig() (*Config, error) {
	dir, err := CapindexDir()
	if err != nil {
		return nil, err
	}
	return &Config{
		CatalogPath: filepath.Join(dir, "elements"),
		IndexPath:   filepath.Join(dir, "capability-index.yaml"),
	}, nil
}

// Load reads and parses ~/.capindex/capindex.yaml.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	cfg.CatalogPath, err = ExpandPath(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	if cfg.IndexPath == "" {
		dir, dirErr := CapindexDir()
		if dirErr != nil {
			return nil, dirErr
		}
		cfg.IndexPath = filepath.Join(dir, "capability-index.yaml")
	} else if cfg.IndexPath, err = ExpandPath(cfg.IndexPath); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save marshals cfg and writes it to ~/.capindex/capindex.yaml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// Thresholds converts the similarity section to engine thresholds. Invalid
// numeric configuration falls back to the built-in defaults with a recorded
// warning, never an error.
func (c *Config) Thresholds(log *zap.Logger) similar.Thresholds {
	def := similar.DefaultThresholds()
	if c.Similarity == nil {
		return def
	}
	t := similar.Thresholds{
		Combined:       c.Similarity.CombinedThreshold,
		MinJaccard:     c.Similarity.MinJaccard,
		ImbalanceRatio: c.Similarity.ImbalanceRatio,
		MinEntropy:     c.Similarity.MinEntropy,
	}
	if !t.Valid() {
		log.Warn("invalid similarity thresholds in config, using defaults",
			zap.Any("configured", c.Similarity))
		return def
	}
	return t
}

// TriggerConfidence converts the confidence section to trigger tiers, with
// the same fallback-and-warn behavior as Thresholds.
func (c *Config) TriggerConfidence(log *zap.Logger) verbs.Confidence {
	def := verbs.DefaultConfidence()
	if c.Confidence == nil {
		return def
	}
	conf := verbs.Confidence{
		Explicit:          c.Confidence.Explicit,
		Name:              c.Confidence.NameBased,
		Description:       c.Confidence.DescriptionBased,
		SynonymMultiplier: c.Confidence.SynonymMultiplier,
	}
	if !conf.Valid() {
		log.Warn("invalid trigger confidences in config, using defaults",
			zap.Any("configured", c.Confidence))
		return def
	}
	return conf
}

// LoadVocabulary reads the optional custom vocabulary file named by the
// config. No path configured means no custom vocabulary.
func (c *Config) LoadVocabulary() (*verbs.Vocabulary, error) {
	if c.VocabularyPath == "" {
		return nil, nil
	}
	path, err := ExpandPath(c.VocabularyPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read vocabulary %s: %w", path, err)
	}
	var v verbs.Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &v, nil
}

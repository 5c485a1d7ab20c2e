// Package store persists the capability index: schema-tolerant load with
// quarantine of corrupt files, atomic save, per-type capacity enforcement,
// and a schema-extension registry for new element and relationship types.
package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kamusis/capindex/internal/capability"
)

// DefaultMaxEntriesPerType caps how many entries of one element type a save
// will keep. Entries past the cap are dropped with a warning, never an error.
const DefaultMaxEntriesPerType = 10000

const quarantineTimeFormat = "20060102T150405Z"

// SchemaFragment declares the element and relationship types an optional
// feature contributes. Registering one never requires touching the core.
type SchemaFragment struct {
	ElementTypes []string
	// RelationshipTypes maps a relationship type to its inverse; an empty
	// inverse means the type has no mirror.
	RelationshipTypes map[string]string
}

// Store owns one index file on disk.
type Store struct {
	path       string
	maxPerType int
	log        *zap.Logger
	fragments  map[string]SchemaFragment
}

// Options configures a Store. Zero values fall back to defaults.
type Options struct {
	// MaxEntriesPerType overrides DefaultMaxEntriesPerType when positive.
	MaxEntriesPerType int
	Logger            *zap.Logger
}

// New returns a store for the index file at path.
func New(path string, opts Options) *Store {
	maxPerType := opts.MaxEntriesPerType
	if maxPerType <= 0 {
		maxPerType = DefaultMaxEntriesPerType
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		path:       path,
		maxPerType: maxPerType,
		log:        log,
		fragments:  make(map[string]SchemaFragment),
	}
}

// Path returns the index file path.
func (s *Store) Path() string { return s.path }

// RegisterExtension records a named schema fragment. Relationship types it
// declares become known to validation and inverse mirroring; element types
// need no registration to load but are recorded for observability.
func (s *Store) RegisterExtension(name string, frag SchemaFragment) {
	s.fragments[name] = frag
}

// ExtensionNames returns registered extension names, sorted.
func (s *Store) ExtensionNames() []string {
	names := make([]string, 0, len(s.fragments))
	for n := range s.fragments {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ExtensionInverses returns the relationship-type inverse declarations
// contributed by every registered extension.
func (s *Store) ExtensionInverses() map[string]string {
	out := make(map[string]string)
	for _, frag := range s.fragments {
		for t, inv := range frag.RelationshipTypes {
			out[t] = inv
		}
	}
	return out
}

// LoadReport describes what Load had to do besides parsing.
type LoadReport struct {
	// Created is true when no index file existed.
	Created bool
	// Corrupt is set when the existing file failed to parse and was
	// quarantined. The returned index is empty in that case.
	Corrupt *CorruptError
}

// Load reads the index, or returns an empty one when the file is missing.
// A file that exists but does not parse is quarantined (renamed with a
// timestamp suffix) and replaced by an empty index; parse failures are
// never propagated as errors.
func (s *Store) Load() (*capability.Index, LoadReport, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return capability.New(), LoadReport{Created: true}, nil
		}
		return nil, LoadReport{}, fmt.Errorf("cannot read index %s: %w", s.path, err)
	}

	idx := capability.New()
	if err := yaml.Unmarshal(data, idx); err != nil {
		corrupt, qErr := s.quarantine(err)
		if qErr != nil {
			return nil, LoadReport{}, qErr
		}
		s.log.Warn("index file corrupt, quarantined and reset",
			zap.String("path", s.path),
			zap.String("quarantine", corrupt.Quarantine),
			zap.Error(err))
		return capability.New(), LoadReport{Corrupt: corrupt}, nil
	}
	if idx.Elements == nil {
		idx.Elements = make(map[string]map[string]*capability.Entry)
	}
	return idx, LoadReport{}, nil
}

func (s *Store) quarantine(cause error) (*CorruptError, error) {
	stamp := time.Now().UTC().Format(quarantineTimeFormat)
	dest := fmt.Sprintf("%s.corrupt-%s", s.path, stamp)
	if err := os.Rename(s.path, dest); err != nil {
		return nil, fmt.Errorf("cannot quarantine corrupt index %s: %w", s.path, err)
	}
	return &CorruptError{Path: s.path, Quarantine: dest, Err: cause}, nil
}

// QuarantinedFiles lists quarantined index files next to the live one.
func (s *Store) QuarantinedFiles() ([]string, error) {
	matches, err := filepath.Glob(s.path + ".corrupt-*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// SaveResult reports non-fatal adjustments a save made.
type SaveResult struct {
	// Dropped lists entries removed to satisfy the per-type capacity cap.
	Dropped []capability.Ref
	// Warnings holds one human-readable line per adjustment.
	Warnings []string
}

// Save writes the index atomically: serialize to a temporary file in the
// target directory, then rename over the destination, so a reader never
// observes a partial file. Entries beyond the per-type cap are dropped with
// a recorded warning; the save still succeeds.
func (s *Store) Save(idx *capability.Index) (SaveResult, error) {
	var res SaveResult
	for _, typeName := range sortedTypes(idx) {
		byID := idx.Elements[typeName]
		if len(byID) <= s.maxPerType {
			continue
		}
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids[s.maxPerType:] {
			ref := capability.Ref{Type: typeName, ID: id}
			idx.Remove(ref)
			res.Dropped = append(res.Dropped, ref)
		}
		warning := fmt.Sprintf("type %q exceeded cap of %d entries; dropped %d",
			typeName, s.maxPerType, len(ids)-s.maxPerType)
		res.Warnings = append(res.Warnings, warning)
		s.log.Warn("entry cap exceeded",
			zap.String("element_type", typeName),
			zap.Int("cap", s.maxPerType),
			zap.Int("dropped", len(ids)-s.maxPerType))
	}
	for _, name := range s.ExtensionNames() {
		idx.RegisterExtension(name)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(idx); err != nil {
		return res, fmt.Errorf("cannot marshal index: %w", err)
	}
	if err := enc.Close(); err != nil {
		return res, fmt.Errorf("cannot marshal index: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("cannot create index dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".capability-index-*.yaml")
	if err != nil {
		return res, fmt.Errorf("cannot create temp index file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		cleanup()
		return res, fmt.Errorf("cannot write temp index file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return res, fmt.Errorf("cannot sync temp index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return res, fmt.Errorf("cannot close temp index file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return res, fmt.Errorf("cannot chmod temp index file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return res, fmt.Errorf("cannot replace index %s: %w", s.path, err)
	}
	return res, nil
}

// WithLock runs fn while holding the index lock file, so one logical
// load → mutate → save unit never interleaves with another process's.
func (s *Store) WithLock(timeout time.Duration, fn func() error) error {
	lockPath := s.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("cannot create lock dir: %w", err)
	}
	l := flock.New(lockPath)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return fmt.Errorf("cannot acquire index lock: %w", err)
		}
		if locked {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("another update is in progress (lock: %s)", lockPath)
		}
		time.Sleep(200 * time.Millisecond)
	}
	defer func() { _ = l.Unlock() }()
	return fn()
}

func (s *Store) lockPath() string {
	base := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	return filepath.Join(filepath.Dir(s.path), base+".lock")
}

func sortedTypes(idx *capability.Index) []string {
	types := make([]string, 0, len(idx.Elements))
	for t := range idx.Elements {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

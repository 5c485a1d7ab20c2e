package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/capindex/internal/capability"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "capability-index.yaml"), opts)
}

func TestLoad_MissingFileYieldsEmptyIndex(t *testing.T) {
	s := newTestStore(t, Options{})
	idx, report, err := s.Load()
	require.NoError(t, err)
	assert.True(t, report.Created)
	assert.Nil(t, report.Corrupt)
	assert.Equal(t, 0, idx.ElementCount())
	assert.Equal(t, capability.CurrentVersion, idx.Version)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t, Options{})
	idx := capability.New()
	idx.Put(&capability.Entry{Type: "skills", ID: "alpha", Name: "Alpha",
		Description: "Parses structured logs"})
	idx.Put(&capability.Entry{Type: "personas", ID: "mentor", Name: "Mentor"})
	idx.Touch(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))

	res, err := s.Save(idx)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	loaded, report, err := s.Load()
	require.NoError(t, err)
	assert.False(t, report.Created)
	assert.Equal(t, 2, loaded.ElementCount())
	e, ok := loaded.Entry(capability.Ref{Type: "skills", ID: "alpha"})
	require.True(t, ok)
	assert.Equal(t, "Alpha", e.Name)
	assert.Equal(t, "2026-08-01T10:00:00Z", loaded.GeneratedAt)
}

func TestSaveLoad_UnknownFieldsSurviveOnDisk(t *testing.T) {
	fixture := `index_version: 2
future_setting: enabled
elements:
  skills:
    alpha:
      name: Alpha
      vendor_extra:
        rating: 5
`
	s := newTestStore(t, Options{})
	require.NoError(t, os.WriteFile(s.Path(), []byte(fixture), 0o644))

	idx, _, err := s.Load()
	require.NoError(t, err)
	_, err = s.Save(idx)
	require.NoError(t, err)

	out, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, fixture, string(out))
}

func TestLoad_CorruptFileIsQuarantined(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, os.WriteFile(s.Path(), []byte("{{{ not yaml"), 0o644))

	idx, report, err := s.Load()
	require.NoError(t, err, "parse failures must never propagate as errors")
	require.NotNil(t, report.Corrupt)
	assert.Equal(t, 0, idx.ElementCount())
	assert.Contains(t, report.Corrupt.Quarantine, ".corrupt-")
	assert.Error(t, report.Corrupt.Err)

	// original path is gone until the next save; the bytes moved aside
	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))
	moved, err := os.ReadFile(report.Corrupt.Quarantine)
	require.NoError(t, err)
	assert.Equal(t, "{{{ not yaml", string(moved))

	files, err := s.QuarantinedFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, report.Corrupt.Quarantine, files[0])
}

func TestSave_EnforcesPerTypeCap(t *testing.T) {
	s := newTestStore(t, Options{MaxEntriesPerType: 3})
	idx := capability.New()
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("elem-%d", i)
		idx.Put(&capability.Entry{Type: "skills", ID: id, Name: id})
	}
	idx.Put(&capability.Entry{Type: "personas", ID: "mentor"})

	res, err := s.Save(idx)
	require.NoError(t, err)
	require.Len(t, res.Dropped, 1, "exactly one entry over the cap is dropped")
	assert.Equal(t, capability.Ref{Type: "skills", ID: "elem-3"}, res.Dropped[0])
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `type "skills" exceeded cap of 3`)

	loaded, _, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.CountsByType()["skills"])
	assert.Equal(t, 1, loaded.CountsByType()["personas"], "other types are untouched")
}

func TestSave_RecordsRegisteredExtensions(t *testing.T) {
	s := newTestStore(t, Options{})
	s.RegisterExtension("config-relationships", SchemaFragment{
		RelationshipTypes: map[string]string{"mentors": "mentored_by"},
	})
	s.RegisterExtension("audit", SchemaFragment{ElementTypes: []string{"audits"}})

	assert.Equal(t, []string{"audit", "config-relationships"}, s.ExtensionNames())
	assert.Equal(t, map[string]string{"mentors": "mentored_by"}, s.ExtensionInverses())

	idx := capability.New()
	_, err := s.Save(idx)
	require.NoError(t, err)

	loaded, _, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"audit", "config-relationships"}, loaded.Extensions)
}

func TestWithLock_RunsAndPropagatesError(t *testing.T) {
	s := newTestStore(t, Options{})
	ran := false
	require.NoError(t, s.WithLock(time.Second, func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	wantErr := fmt.Errorf("boom")
	err := s.WithLock(time.Second, func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestWithLock_TimesOutWhenHeld(t *testing.T) {
	s := newTestStore(t, Options{})
	held := flock.New(s.lockPath())
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock() //nolint:errcheck

	err = s.WithLock(50*time.Millisecond, func() error {
		t.Fatal("fn must not run while the lock is held elsewhere")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another update is in progress")
}

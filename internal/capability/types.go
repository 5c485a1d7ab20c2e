// Package capability defines the persisted capability index: elements keyed
// by an open type string, their action triggers, and the typed relationship
// edges discovered between them.
package capability

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the schema version written by this build. Older and
// newer files load fine; unrecognized fields ride along untouched.
const CurrentVersion = 2

// Confidence tiers for action triggers. A synonym-derived trigger carries
// SynonymMultiplier times the confidence of the tier it was derived from.
const (
	TierExplicit    = "explicit"
	TierName        = "name-based"
	TierDescription = "description-based"
	TierSynonym     = "synonym-derived"
)

// Default confidence per tier. Overridable via config; see DESIGN.md on why
// these are defaults rather than trusted constants.
const (
	ConfidenceExplicit    = 0.9
	ConfidenceName        = 0.6
	ConfidenceDescription = 0.4
	SynonymMultiplier     = 0.8
)

// Discovery methods recorded in edge metadata.
const (
	MethodPattern    = "pattern"
	MethodVerb       = "verb"
	MethodSimilarity = "similarity"
)

// Ref is a typed element reference in "type:id" form. Element types are open
// strings; a new type needs no code change anywhere in this package.
type Ref struct {
	Type string
	ID   string
}

func (r Ref) String() string { return r.Type + ":" + r.ID }

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool { return r.Type == "" && r.ID == "" }

// ParseRef parses a "type:id" string.
func ParseRef(s string) (Ref, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("invalid element reference %q: want type:id", s)
	}
	return Ref{Type: parts[0], ID: parts[1]}, nil
}

// Trigger maps a canonical verb to the owning element with a confidence
// tier. DerivedFrom is set on synonym-derived triggers and names the verb
// form the canonical verb was reached through.
type Trigger struct {
	Verb        string
	Tier        string
	Confidence  float64
	DerivedFrom string

	extra extraFields
}

// EdgeMeta records how an edge was discovered and the supporting evidence:
// the matched text pattern, the raw Jaccard coefficient and entropy delta,
// or the shared canonical verbs, plus the discovery run that produced it.
type EdgeMeta struct {
	Method       string
	Pattern      string
	Jaccard      *float64
	EntropyDelta *float64
	SharedVerbs  []string
	Run          string

	extra extraFields
}

func (m EdgeMeta) isZero() bool {
	return m.Method == "" && m.Pattern == "" && m.Jaccard == nil &&
		m.EntropyDelta == nil && len(m.SharedVerbs) == 0 && m.Run == "" &&
		len(m.extra.order) == 0
}

// Edge is a directed, typed, strength-weighted connection from the owning
// entry to Target. Relationship types are open strings.
type Edge struct {
	Type     string
	Target   Ref
	Strength float64
	Meta     EdgeMeta

	extra extraFields
}

// TextStats caches the tokenization artifacts for an entry's description so
// similarity passes can skip unchanged elements. Derived data: safe to drop.
type TextStats struct {
	Hash   string
	Tokens []string
	Freq   map[string]int

	extra extraFields
}

// Entry is one indexed element. ID and Type are not serialized inside the
// entry (they are the map keys it lives under) and are filled in on load.
type Entry struct {
	ID   string `yaml:"-"`
	Type string `yaml:"-"`

	Name        string
	Description string
	// Custom holds arbitrary nested data specific to the element's type.
	// The core never interprets it; the original node is kept so styles
	// and comments survive a round trip.
	Custom        *yaml.Node
	Triggers      []Trigger
	Relationships []Edge
	Cache         *TextStats

	extra extraFields
}

// Ref returns the entry's typed reference.
func (e *Entry) Ref() Ref { return Ref{Type: e.Type, ID: e.ID} }

// HasEdge reports whether an edge with the same (type, target) already
// exists. Strength and metadata are deliberately excluded: re-discovery of
// a known edge must be a no-op, not a duplicate.
func (e *Entry) HasEdge(relType string, target Ref) bool {
	for _, edge := range e.Relationships {
		if edge.Type == relType && edge.Target == target {
			return true
		}
	}
	return false
}

// AddEdge inserts an edge unless a structurally equal one exists. Reports
// whether the edge was inserted.
func (e *Entry) AddEdge(edge Edge) bool {
	if e.HasEdge(edge.Type, edge.Target) {
		return false
	}
	e.Relationships = append(e.Relationships, edge)
	return true
}

// RemoveEdge deletes the edge with the given type and target. Reports
// whether an edge was removed.
func (e *Entry) RemoveEdge(relType string, target Ref) bool {
	for i, edge := range e.Relationships {
		if edge.Type == relType && edge.Target == target {
			e.Relationships = append(e.Relationships[:i], e.Relationships[i+1:]...)
			return true
		}
	}
	return false
}

// FindEdge returns the edge with the given type and target, if present.
func (e *Entry) FindEdge(relType string, target Ref) (Edge, bool) {
	for _, edge := range e.Relationships {
		if edge.Type == relType && edge.Target == target {
			return edge, true
		}
	}
	return Edge{}, false
}

// HasTrigger reports whether a trigger for the verb already exists.
func (e *Entry) HasTrigger(verb string) bool {
	for _, t := range e.Triggers {
		if t.Verb == verb {
			return true
		}
	}
	return false
}

// AddTrigger inserts a trigger for a verb not yet present, or upgrades the
// existing trigger when the new confidence is strictly higher. Reports
// whether anything changed.
func (e *Entry) AddTrigger(t Trigger) bool {
	for i, old := range e.Triggers {
		if old.Verb != t.Verb {
			continue
		}
		if t.Confidence > old.Confidence {
			e.Triggers[i] = t
			return true
		}
		return false
	}
	e.Triggers = append(e.Triggers, t)
	return true
}

// Index is the persisted capability index root.
type Index struct {
	Version     int
	GeneratedAt string
	Extensions  []string
	// Elements maps element-type name → element id → entry.
	Elements map[string]map[string]*Entry

	extra extraFields
}

// New returns an empty index at the current schema version.
func New() *Index {
	return &Index{
		Version:  CurrentVersion,
		Elements: make(map[string]map[string]*Entry),
	}
}

// Touch updates the generation timestamp.
func (idx *Index) Touch(now time.Time) {
	idx.GeneratedAt = now.UTC().Format(time.RFC3339)
}

// Entry looks up an element by reference.
func (idx *Index) Entry(ref Ref) (*Entry, bool) {
	byID, ok := idx.Elements[ref.Type]
	if !ok {
		return nil, false
	}
	e, ok := byID[ref.ID]
	return e, ok
}

// Put inserts or replaces an entry under its type and id.
func (idx *Index) Put(e *Entry) {
	if idx.Elements == nil {
		idx.Elements = make(map[string]map[string]*Entry)
	}
	byID, ok := idx.Elements[e.Type]
	if !ok {
		byID = make(map[string]*Entry)
		idx.Elements[e.Type] = byID
	}
	byID[e.ID] = e
}

// Remove deletes an entry. Edges pointing at it elsewhere are left in place;
// traversal treats dangling targets as dead ends.
func (idx *Index) Remove(ref Ref) {
	if byID, ok := idx.Elements[ref.Type]; ok {
		delete(byID, ref.ID)
		if len(byID) == 0 {
			delete(idx.Elements, ref.Type)
		}
	}
}

// Refs returns every element reference, sorted by type then id.
func (idx *Index) Refs() []Ref {
	var out []Ref
	for _, t := range sortedKeys(idx.Elements) {
		byID := idx.Elements[t]
		for _, id := range sortedKeys(byID) {
			out = append(out, Ref{Type: t, ID: id})
		}
	}
	return out
}

// Each visits every entry in deterministic (type, id) order. Returning an
// error from fn stops the walk.
func (idx *Index) Each(fn func(*Entry) error) error {
	for _, ref := range idx.Refs() {
		e, _ := idx.Entry(ref)
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// ElementCount returns the total number of indexed elements.
func (idx *Index) ElementCount() int {
	n := 0
	for _, byID := range idx.Elements {
		n += len(byID)
	}
	return n
}

// RelationshipCount returns the total number of stored edges.
func (idx *Index) RelationshipCount() int {
	n := 0
	for _, byID := range idx.Elements {
		for _, e := range byID {
			n += len(e.Relationships)
		}
	}
	return n
}

// CountsByType returns element counts keyed by element-type name.
func (idx *Index) CountsByType() map[string]int {
	out := make(map[string]int, len(idx.Elements))
	for t, byID := range idx.Elements {
		out[t] = len(byID)
	}
	return out
}

// RegisterExtension records a schema fragment name contributed by an
// optional feature. Idempotent.
func (idx *Index) RegisterExtension(name string) {
	for _, ext := range idx.Extensions {
		if ext == name {
			return
		}
	}
	idx.Extensions = append(idx.Extensions, name)
	sort.Strings(idx.Extensions)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

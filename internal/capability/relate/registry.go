// Package relate discovers typed relationships between elements and answers
// graph queries over them: path finding, connected-element sets, and
// aggregate stats.
package relate

import "sort"

// Registry is the open relationship-type taxonomy. A type may declare an
// inverse; every insert of such a type mirrors an edge on the target. New
// types are added by data (config or store extensions), never by code.
type Registry struct {
	inverse map[string]string // type → inverse ("" = no mirror)
}

// NewRegistry returns a registry seeded with the built-in taxonomy.
func NewRegistry() *Registry {
	r := &Registry{inverse: make(map[string]string, 2*len(defaultInverses))}
	for t, inv := range defaultInverses {
		r.Register(t, inv)
	}
	return r
}

// Register declares a relationship type and its inverse. The inverse
// direction is registered too, so lookups work from either side. An empty
// inverse declares a one-way type.
func (r *Registry) Register(relType, inverse string) {
	r.inverse[relType] = inverse
	if inverse != "" {
		r.inverse[inverse] = relType
	}
}

// Known reports whether the type is registered.
func (r *Registry) Known(relType string) bool {
	_, ok := r.inverse[relType]
	return ok
}

// Inverse returns the declared inverse of a type ("" when none).
func (r *Registry) Inverse(relType string) string { return r.inverse[relType] }

// Types returns every registered type, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.inverse))
	for t := range r.inverse {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Built-in relationship taxonomy. similar_to and related_to are their own
// inverses: the mirror edge carries the same type.
var defaultInverses = map[string]string{
	"uses":             "used_by",
	"depends_on":       "required_by",
	"prerequisite_for": "requires",
	"extends":          "extended_by",
	"replaces":         "replaced_by",
	"similar_to":       "similar_to",
	"related_to":       "related_to",
	"helps_debug":      "debugged_by",
	"helps_create":     "created_by",
	"helps_test":       "tested_by",
	"helps_document":   "documented_by",
	"helps_analyze":    "analyzed_by",
	"shares_verb":      "shares_verb",
}

// categoryEdge maps a verb category to the edge type a shared verb in that
// category suggests. Unlisted categories fall back to shares_verb.
var categoryEdge = map[string]string{
	"debugging":     "helps_debug",
	"creation":      "helps_create",
	"testing":       "helps_test",
	"validation":    "helps_test",
	"documentation": "helps_document",
	"explanation":   "helps_document",
	"analysis":      "helps_analyze",
}

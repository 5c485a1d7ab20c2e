package verbs

import (
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/kamusis/capindex/internal/capability"
)

// Confidence holds the per-tier trigger confidences. Defaults mirror the
// capability package constants; config may override them.
type Confidence struct {
	Explicit          float64
	Name              float64
	Description       float64
	SynonymMultiplier float64
}

// DefaultConfidence returns the built-in tier confidences.
func DefaultConfidence() Confidence {
	return Confidence{
		Explicit:          capability.ConfidenceExplicit,
		Name:              capability.ConfidenceName,
		Description:       capability.ConfidenceDescription,
		SynonymMultiplier: capability.SynonymMultiplier,
	}
}

// Valid reports whether every confidence is inside [0,1].
func (c Confidence) Valid() bool {
	unit := func(v float64) bool { return v >= 0 && v <= 1 }
	return unit(c.Explicit) && unit(c.Name) && unit(c.Description) && unit(c.SynonymMultiplier)
}

// Manager resolves natural-language intent to ranked element candidates and
// extracts action triggers from element metadata.
type Manager struct {
	tax  *Taxonomy
	conf Confidence
	log  *zap.Logger
}

// NewManager wires a manager to an already-constructed taxonomy. The
// taxonomy must be fully loaded before the manager is built; nothing here
// mutates it afterwards.
func NewManager(tax *Taxonomy, conf Confidence, log *zap.Logger) *Manager {
	if !conf.Valid() {
		conf = DefaultConfidence()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{tax: tax, conf: conf, log: log}
}

// Taxonomy returns the manager's taxonomy.
func (m *Manager) Taxonomy() *Taxonomy { return m.tax }

// ExtractTriggers derives action triggers for one entry from its explicit
// trigger list, its name, and its description, in descending confidence
// tiers. A surface form that reaches its canonical verb through a synonym
// lands in the synonym-derived tier at SynonymMultiplier times the source
// tier. Reports whether the entry changed.
func (m *Manager) ExtractTriggers(e *capability.Entry, explicit []string) bool {
	changed := false
	add := func(surface, verb, tier string, base float64) {
		t := capability.Trigger{Verb: verb, Tier: tier, Confidence: base}
		if m.tax.IsSynonymForm(surface) && tier != capability.TierExplicit {
			t.Tier = capability.TierSynonym
			t.Confidence = m.conf.SynonymMultiplier * base
			t.DerivedFrom = surface
		}
		if e.AddTrigger(t) {
			changed = true
		}
	}

	for _, raw := range explicit {
		surface := strings.ToLower(strings.TrimSpace(raw))
		if surface == "" {
			continue
		}
		if verb, ok := m.tax.ResolvePhrase(surface); ok && strings.Contains(surface, " ") {
			add(surface, verb, capability.TierExplicit, m.conf.Explicit)
			continue
		}
		if verb, _, ok := m.tax.Resolve(surface); ok {
			add(surface, verb, capability.TierExplicit, m.conf.Explicit)
			continue
		}
		// Unknown explicit verbs are honored as-is: the element owner said
		// so, and open taxonomies accept data-only additions.
		add(surface, surface, capability.TierExplicit, m.conf.Explicit)
	}

	for _, tok := range splitWords(e.Name) {
		if verb, _, ok := m.tax.Resolve(tok); ok {
			add(tok, verb, capability.TierName, m.conf.Name)
		}
	}
	for _, tok := range splitWords(e.Description) {
		if verb, _, ok := m.tax.Resolve(tok); ok {
			add(tok, verb, capability.TierDescription, m.conf.Description)
		}
	}
	return changed
}

// Candidate is one ranked query result.
type Candidate struct {
	Ref   capability.Ref
	Score float64
	// Verb is the canonical verb that matched; Via is the surface form in
	// the query that resolved to it.
	Verb string
	Via  string
}

// Query resolves the query text to canonical verbs (direct match, then
// conjugation, then phrase table), gathers all triggers referencing them,
// and returns candidates ranked by score. Phrase-derived matches are scaled
// by the synonym multiplier. When several verbs reach the same element the
// maximum score wins. Ties break by element reference for determinism.
func (m *Manager) Query(idx *capability.Index, text string) []Candidate {
	matches := m.resolveQuery(text)
	if len(matches) == 0 {
		return nil
	}

	reverse := m.ReverseMap(idx)
	best := make(map[capability.Ref]Candidate)
	for _, qm := range matches {
		mult := 1.0
		if qm.how == ResolvedPhrase {
			mult = m.conf.SynonymMultiplier
		}
		for _, hit := range reverse[qm.verb] {
			score := hit.Confidence * mult
			if prev, ok := best[hit.Ref]; !ok || score > prev.Score {
				best[hit.Ref] = Candidate{Ref: hit.Ref, Score: score, Verb: qm.verb, Via: qm.surface}
			}
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Ref.String() < out[j].Ref.String()
		}
		return out[i].Score > out[j].Score
	})
	return out
}

type queryMatch struct {
	surface string
	verb    string
	how     Resolution
}

// resolveQuery walks the query words, consuming the longest phrase match
// first, then resolving leftover single words.
func (m *Manager) resolveQuery(text string) []queryMatch {
	words := splitWords(text)
	var out []queryMatch
	seen := make(map[string]int) // verb → index into out
	record := func(surface, verb string, how Resolution) {
		// keep the strongest resolution per verb: direct beats conjugation
		// beats phrase, regardless of position in the query
		if at, ok := seen[verb]; ok {
			if how < out[at].how {
				out[at] = queryMatch{surface: surface, verb: verb, how: how}
			}
			return
		}
		seen[verb] = len(out)
		out = append(out, queryMatch{surface: surface, verb: verb, how: how})
	}

	i := 0
	for i < len(words) {
		matched := false
		for n := maxPhraseWords; n >= 2; n-- {
			if i+n > len(words) {
				continue
			}
			phrase := strings.Join(words[i:i+n], " ")
			if verb, ok := m.tax.ResolvePhrase(phrase); ok {
				record(phrase, verb, ResolvedPhrase)
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if verb, how, ok := m.tax.Resolve(words[i]); ok {
			record(words[i], verb, how)
		}
		i++
	}
	return out
}

const maxPhraseWords = 5

// TriggerHit is one trigger found during reverse lookup.
type TriggerHit struct {
	Ref        capability.Ref
	Confidence float64
	Tier       string
}

// ReverseMap builds verb → triggers across the whole index.
func (m *Manager) ReverseMap(idx *capability.Index) map[string][]TriggerHit {
	out := make(map[string][]TriggerHit)
	_ = idx.Each(func(e *capability.Entry) error {
		for _, t := range e.Triggers {
			out[t.Verb] = append(out[t.Verb], TriggerHit{
				Ref:        e.Ref(),
				Confidence: t.Confidence,
				Tier:       t.Tier,
			})
		}
		return nil
	})
	return out
}

// ReverseLookup returns every verb mapped to the element, sorted.
func (m *Manager) ReverseLookup(idx *capability.Index, ref capability.Ref) []string {
	e, ok := idx.Entry(ref)
	if !ok {
		return nil
	}
	verbsSeen := make(map[string]bool, len(e.Triggers))
	for _, t := range e.Triggers {
		verbsSeen[t.Verb] = true
	}
	out := make([]string, 0, len(verbsSeen))
	for v := range verbsSeen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// splitWords lowercases and splits on non-letter/digit boundaries, keeping
// stop words so multi-word phrases like "look up" stay intact.
func splitWords(text string) []string {
	lowered := strings.ToLower(text)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Package verbs maps natural-language intent to elements: an immutable verb
// taxonomy (categories, conjugations, phrases) plus trigger extraction and
// ranked query resolution.
package verbs

import (
	"sort"
	"strings"
)

// Resolution records how a surface token reached a canonical verb, in
// priority order: direct match, then conjugation/stem, then phrase table.
type Resolution int

const (
	ResolvedDirect Resolution = iota
	ResolvedConjugation
	ResolvedPhrase
)

// Vocabulary is the external configuration merged over the built-in
// defaults at taxonomy construction time.
type Vocabulary struct {
	// Verbs maps extra canonical verbs to their category.
	Verbs map[string]string `yaml:"verbs"`
	// Synonyms maps surface verbs to an existing canonical verb.
	Synonyms map[string]string `yaml:"synonyms"`
	// Phrases maps multi-word phrases to a canonical verb.
	Phrases map[string]string `yaml:"phrases"`
	// Prefixes lists verb prefixes stripped during conjugation matching
	// (e.g. "re", "un").
	Prefixes []string `yaml:"prefixes"`
	// Suffixes lists extra inflection suffixes beyond the built-in set.
	Suffixes []string `yaml:"suffixes"`
	// ExcludedNouns lists words that look like verbs but must never
	// produce a trigger (e.g. "object", "project").
	ExcludedNouns []string `yaml:"excluded_nouns"`
}

// Taxonomy is the process-wide verb knowledge: canonical verbs by category,
// a conjugation table, and a phrase table. Construct it once at startup;
// it is immutable afterwards and safe to share by reference.
type Taxonomy struct {
	category  map[string]string // canonical verb → category
	canonical map[string]string // any accepted single-word form → canonical
	synonym   map[string]bool   // surface forms that are synonyms, not the canonical verb itself
	phrases   map[string]string // multi-word phrase → canonical
	excluded  map[string]bool
	prefixes  []string
	suffixes  []string
}

// NewTaxonomy builds a taxonomy from the built-in defaults plus vocab.
// A nil vocab loads defaults only.
func NewTaxonomy(vocab *Vocabulary) *Taxonomy {
	t := &Taxonomy{
		category:  make(map[string]string),
		canonical: make(map[string]string),
		synonym:   make(map[string]bool),
		phrases:   make(map[string]string),
		excluded:  make(map[string]bool),
		suffixes:  []string{"ing", "ed", "es", "s"},
		prefixes:  []string{"re"},
	}
	for category, group := range defaultVerbs {
		t.addVerb(group.canonical, category)
		for _, syn := range group.synonyms {
			t.addSynonym(syn, group.canonical)
		}
	}
	for phrase, verb := range defaultPhrases {
		t.phrases[normPhrase(phrase)] = verb
	}
	for _, n := range defaultExcludedNouns {
		t.excluded[strings.ToLower(n)] = true
	}

	if vocab != nil {
		for verb, category := range vocab.Verbs {
			t.addVerb(strings.ToLower(verb), strings.ToLower(category))
		}
		for syn, verb := range vocab.Synonyms {
			t.addSynonym(strings.ToLower(syn), strings.ToLower(verb))
		}
		for phrase, verb := range vocab.Phrases {
			t.phrases[normPhrase(phrase)] = strings.ToLower(verb)
		}
		for _, n := range vocab.ExcludedNouns {
			t.excluded[strings.ToLower(n)] = true
		}
		t.prefixes = append(t.prefixes, vocab.Prefixes...)
		t.suffixes = append(t.suffixes, vocab.Suffixes...)
	}
	return t
}

func (t *Taxonomy) addVerb(verb, category string) {
	t.category[verb] = category
	t.canonical[verb] = verb
	t.addConjugations(verb, verb)
}

func (t *Taxonomy) addSynonym(form, verb string) {
	if _, ok := t.category[verb]; !ok {
		// synonym of an unknown verb; register the verb uncategorized
		t.category[verb] = ""
		t.canonical[verb] = verb
	}
	t.canonical[form] = verb
	t.synonym[form] = true
	t.addConjugations(form, verb)
}

// addConjugations generates inflected forms of a surface verb and maps them
// to the canonical verb: walks → walk, walking → walk, debugged → debug
// (final-consonant doubling), tries → try.
func (t *Taxonomy) addConjugations(form, verb string) {
	add := func(f string) {
		if _, exists := t.canonical[f]; !exists {
			t.canonical[f] = verb
			if form != verb || f != verb {
				t.synonym[f] = t.synonym[form] // inherits synonym-ness of the base form
			}
		}
	}
	add(form + "s")
	switch {
	case strings.HasSuffix(form, "e"):
		add(form + "d")
		add(form[:len(form)-1] + "ing")
	case strings.HasSuffix(form, "y") && len(form) > 2 && !isVowel(form[len(form)-2]):
		add(form[:len(form)-1] + "ies")
		add(form[:len(form)-1] + "ied")
		add(form + "ing")
	default:
		add(form + "ed")
		add(form + "ing")
		if n := len(form); n >= 3 && !isVowel(form[n-1]) && isVowel(form[n-2]) && !isVowel(form[n-3]) {
			last := string(form[n-1])
			add(form + last + "ed")
			add(form + last + "ing")
		}
	}
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// Resolve maps a single lowercase token to its canonical verb. Priority:
// direct canonical/synonym match, then conjugation-table and stem match.
// Excluded nouns never resolve.
func (t *Taxonomy) Resolve(token string) (verb string, how Resolution, ok bool) {
	if t.excluded[token] {
		return "", 0, false
	}
	if v, found := t.canonical[token]; found {
		if v == token {
			return v, ResolvedDirect, true
		}
		return v, ResolvedConjugation, true
	}
	// stem fallback: strip known suffixes and prefixes, retry the table
	for _, suf := range t.suffixes {
		base, found := strings.CutSuffix(token, suf)
		if !found || len(base) < 2 {
			continue
		}
		if v, found := t.canonical[base]; found {
			return v, ResolvedConjugation, true
		}
	}
	for _, pre := range t.prefixes {
		base, found := strings.CutPrefix(token, pre)
		if !found || len(base) < 3 {
			continue
		}
		if v, found2 := t.canonical[base]; found2 {
			return v, ResolvedConjugation, true
		}
	}
	return "", 0, false
}

// ResolvePhrase maps a normalized multi-word phrase to a canonical verb.
func (t *Taxonomy) ResolvePhrase(phrase string) (string, bool) {
	v, ok := t.phrases[normPhrase(phrase)]
	return v, ok
}

// IsSynonymForm reports whether the surface form reaches its canonical verb
// through a synonym rather than the verb's own conjugations.
func (t *Taxonomy) IsSynonymForm(token string) bool { return t.synonym[token] }

// Category returns the category of a canonical verb ("" when unknown).
func (t *Taxonomy) Category(verb string) string { return t.category[verb] }

// CanonicalVerbs returns every canonical verb, sorted.
func (t *Taxonomy) CanonicalVerbs() []string {
	out := make([]string, 0, len(t.category))
	for v := range t.category {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func normPhrase(p string) string {
	return strings.Join(strings.Fields(strings.ToLower(p)), " ")
}

type verbGroup struct {
	canonical string
	synonyms  []string
}

// Built-in taxonomy. Categories are open strings; these are the defaults
// every installation starts from.
var defaultVerbs = map[string]verbGroup{
	"debugging":         {canonical: "debug", synonyms: []string{"troubleshoot", "diagnose", "trace"}},
	"fixing":            {canonical: "fix", synonyms: []string{"repair", "patch", "resolve"}},
	"creation":          {canonical: "create", synonyms: []string{"build", "generate", "scaffold", "compose"}},
	"writing":           {canonical: "write", synonyms: []string{"draft", "author"}},
	"explanation":       {canonical: "explain", synonyms: []string{"describe", "clarify", "teach"}},
	"documentation":     {canonical: "document", synonyms: []string{"annotate"}},
	"summarization":     {canonical: "summarize", synonyms: []string{"condense", "digest"}},
	"analysis":          {canonical: "analyze", synonyms: []string{"review", "evaluate", "audit", "assess"}},
	"comparison":        {canonical: "compare", synonyms: []string{"contrast", "benchmark"}},
	"memory-operations": {canonical: "remember", synonyms: []string{"recall", "memorize"}},
	"storage":           {canonical: "store", synonyms: []string{"save", "persist", "archive"}},
	"retrieval":         {canonical: "retrieve", synonyms: []string{"fetch", "load"}},
	"search":            {canonical: "search", synonyms: []string{"find", "locate", "discover"}},
	"transformation":    {canonical: "convert", synonyms: []string{"transform", "translate", "migrate"}},
	"refactoring":       {canonical: "refactor", synonyms: []string{"restructure", "simplify"}},
	"validation":        {canonical: "validate", synonyms: []string{"verify", "check", "lint"}},
	"testing":           {canonical: "test", synonyms: []string{"exercise"}},
	"planning":          {canonical: "plan", synonyms: []string{"organize", "schedule", "outline"}},
	"solving":           {canonical: "solve", synonyms: []string{"answer", "compute"}},
	"deployment":        {canonical: "deploy", synonyms: []string{"release", "ship", "publish"}},
}

var defaultPhrases = map[string]string{
	"figure out":           "solve",
	"work out":             "solve",
	"sort out":             "fix",
	"track down":           "debug",
	"dig into":             "analyze",
	"look up":              "search",
	"look into":            "analyze",
	"write up":             "document",
	"sum up":               "summarize",
	"set up":               "create",
	"put together":         "create",
	"break down":           "explain",
	"take apart":           "analyze",
	"keep track of":        "remember",
	"get to the bottom of": "debug",
}

var defaultExcludedNouns = []string{
	"object", "project", "process", "contact", "record", "address",
	"content", "subject", "permit", "present", "produce", "report",
}

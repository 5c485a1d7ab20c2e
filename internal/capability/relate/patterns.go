package relate

import (
	"regexp"
	"strings"
)

// PatternStrength is the default strength for pattern-discovered edges: the
// author wrote the dependency down, but free text is noisier than an
// explicit declaration.
const PatternStrength = 0.7

type textPattern struct {
	relType string
	re      *regexp.Regexp
}

// Fixed pattern set scanned against description text. Each capture group is
// a candidate element name or id in slug form.
var textPatterns = []textPattern{
	{"uses", regexp.MustCompile(`(?i)\buses\s+(?:the\s+)?([a-z0-9][a-z0-9_-]*)`)},
	{"depends_on", regexp.MustCompile(`(?i)\bdepends\s+on\s+(?:the\s+)?([a-z0-9][a-z0-9_-]*)`)},
	{"requires", regexp.MustCompile(`(?i)\brequires\s+(?:the\s+)?([a-z0-9][a-z0-9_-]*)`)},
	{"prerequisite_for", regexp.MustCompile(`(?i)\bprerequisite\s+for\s+(?:the\s+)?([a-z0-9][a-z0-9_-]*)`)},
	{"extends", regexp.MustCompile(`(?i)\bextends\s+(?:the\s+)?([a-z0-9][a-z0-9_-]*)`)},
	{"replaces", regexp.MustCompile(`(?i)\breplaces\s+(?:the\s+)?([a-z0-9][a-z0-9_-]*)`)},
	{"related_to", regexp.MustCompile(`(?i)\b(?:related\s+to|works\s+with)\s+(?:the\s+)?([a-z0-9][a-z0-9_-]*)`)},
}

// patternMatch is one raw hit before target resolution.
type patternMatch struct {
	relType string
	target  string // captured slug, lowercased
	matched string // full matched text, kept as evidence
}

func scanPatterns(text string) []patternMatch {
	var out []patternMatch
	for _, p := range textPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			out = append(out, patternMatch{
				relType: p.relType,
				target:  strings.ToLower(m[1]),
				matched: m[0],
			})
		}
	}
	return out
}

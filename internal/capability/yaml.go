package capability

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Key order used when a field was never seen in a loaded file. Fields that
// were loaded keep their source order (see encodeMapping).
var (
	indexKeys   = []string{"index_version", "generated_at", "extensions", "elements"}
	entryKeys   = []string{"name", "description", "custom", "triggers", "relationships", "cache"}
	triggerKeys = []string{"verb", "tier", "confidence", "derived_from"}
	edgeKeys    = []string{"type", "target", "strength", "meta"}
	metaKeys    = []string{"method", "pattern", "jaccard", "entropy_delta", "shared_verbs", "run"}
	statsKeys   = []string{"hash", "tokens", "freq"}
)

func omitEmptyStr(s string) fieldEncoder {
	return func() (*yaml.Node, error) {
		if s == "" {
			return nil, nil
		}
		return valueNode(s)
	}
}

func omitEmptyStrs(ss []string) fieldEncoder {
	return func() (*yaml.Node, error) {
		if len(ss) == 0 {
			return nil, nil
		}
		return valueNode(ss)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (idx *Index) UnmarshalYAML(node *yaml.Node) error {
	idx.Elements = make(map[string]map[string]*Entry)
	return decodeMapping(node, &idx.extra, map[string]func(*yaml.Node) error{
		"index_version": func(n *yaml.Node) error { return n.Decode(&idx.Version) },
		"generated_at":  func(n *yaml.Node) error { return n.Decode(&idx.GeneratedAt) },
		"extensions":    func(n *yaml.Node) error { return n.Decode(&idx.Extensions) },
		"elements":      idx.decodeElements,
	})
}

func (idx *Index) decodeElements(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("elements: expected a mapping, got %s", nodeKindName(node))
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		typeName := node.Content[i].Value
		byIDNode := node.Content[i+1]
		if byIDNode.Kind != yaml.MappingNode {
			return fmt.Errorf("elements.%s: expected a mapping, got %s", typeName, nodeKindName(byIDNode))
		}
		for j := 0; j+1 < len(byIDNode.Content); j += 2 {
			id := byIDNode.Content[j].Value
			e := &Entry{}
			if err := byIDNode.Content[j+1].Decode(e); err != nil {
				return fmt.Errorf("elements.%s.%s: %w", typeName, id, err)
			}
			e.ID = id
			e.Type = typeName
			idx.Put(e)
		}
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler. Element-type and element-id maps
// are emitted in sorted order so output stays deterministic and diffable.
func (idx *Index) MarshalYAML() (any, error) {
	return encodeMapping(idx.extra, indexKeys, map[string]fieldEncoder{
		"index_version": func() (*yaml.Node, error) { return valueNode(idx.Version) },
		"generated_at":  omitEmptyStr(idx.GeneratedAt),
		"extensions":    omitEmptyStrs(idx.Extensions),
		"elements":      idx.encodeElements,
	})
}

func (idx *Index) encodeElements() (*yaml.Node, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, typeName := range sortedKeys(idx.Elements) {
		byID := idx.Elements[typeName]
		typeNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, id := range sortedKeys(byID) {
			entryNode, err := valueNode(byID[id])
			if err != nil {
				return nil, fmt.Errorf("elements.%s.%s: %w", typeName, id, err)
			}
			typeNode.Content = append(typeNode.Content, strNode(id), entryNode)
		}
		root.Content = append(root.Content, strNode(typeName), typeNode)
	}
	return root, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	return decodeMapping(node, &e.extra, map[string]func(*yaml.Node) error{
		"name":        func(n *yaml.Node) error { return n.Decode(&e.Name) },
		"description": func(n *yaml.Node) error { return n.Decode(&e.Description) },
		"custom": func(n *yaml.Node) error {
			e.Custom = n
			return nil
		},
		"triggers":      func(n *yaml.Node) error { return n.Decode(&e.Triggers) },
		"relationships": func(n *yaml.Node) error { return n.Decode(&e.Relationships) },
		"cache":         func(n *yaml.Node) error { return n.Decode(&e.Cache) },
	})
}

// MarshalYAML implements yaml.Marshaler.
func (e *Entry) MarshalYAML() (any, error) {
	return encodeMapping(e.extra, entryKeys, map[string]fieldEncoder{
		"name":        omitEmptyStr(e.Name),
		"description": omitEmptyStr(e.Description),
		"custom": func() (*yaml.Node, error) {
			return e.Custom, nil
		},
		"triggers": func() (*yaml.Node, error) {
			if len(e.Triggers) == 0 {
				return nil, nil
			}
			return valueNode(e.Triggers)
		},
		"relationships": func() (*yaml.Node, error) {
			if len(e.Relationships) == 0 {
				return nil, nil
			}
			return valueNode(e.Relationships)
		},
		"cache": func() (*yaml.Node, error) {
			if e.Cache == nil {
				return nil, nil
			}
			return valueNode(e.Cache)
		},
	})
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Trigger) UnmarshalYAML(node *yaml.Node) error {
	return decodeMapping(node, &t.extra, map[string]func(*yaml.Node) error{
		"verb":         func(n *yaml.Node) error { return n.Decode(&t.Verb) },
		"tier":         func(n *yaml.Node) error { return n.Decode(&t.Tier) },
		"confidence":   func(n *yaml.Node) error { return n.Decode(&t.Confidence) },
		"derived_from": func(n *yaml.Node) error { return n.Decode(&t.DerivedFrom) },
	})
}

// MarshalYAML implements yaml.Marshaler.
func (t Trigger) MarshalYAML() (any, error) {
	return encodeMapping(t.extra, triggerKeys, map[string]fieldEncoder{
		"verb":         omitEmptyStr(t.Verb),
		"tier":         omitEmptyStr(t.Tier),
		"confidence":   func() (*yaml.Node, error) { return valueNode(t.Confidence) },
		"derived_from": omitEmptyStr(t.DerivedFrom),
	})
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Edge) UnmarshalYAML(node *yaml.Node) error {
	return decodeMapping(node, &e.extra, map[string]func(*yaml.Node) error{
		"type": func(n *yaml.Node) error { return n.Decode(&e.Type) },
		"target": func(n *yaml.Node) error {
			var s string
			if err := n.Decode(&s); err != nil {
				return err
			}
			ref, err := ParseRef(s)
			if err != nil {
				return err
			}
			e.Target = ref
			return nil
		},
		"strength": func(n *yaml.Node) error { return n.Decode(&e.Strength) },
		"meta":     func(n *yaml.Node) error { return n.Decode(&e.Meta) },
	})
}

// MarshalYAML implements yaml.Marshaler.
func (e Edge) MarshalYAML() (any, error) {
	return encodeMapping(e.extra, edgeKeys, map[string]fieldEncoder{
		"type":     omitEmptyStr(e.Type),
		"target":   omitEmptyStr(e.Target.String()),
		"strength": func() (*yaml.Node, error) { return valueNode(e.Strength) },
		"meta": func() (*yaml.Node, error) {
			if e.Meta.isZero() {
				return nil, nil
			}
			return valueNode(e.Meta)
		},
	})
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *EdgeMeta) UnmarshalYAML(node *yaml.Node) error {
	return decodeMapping(node, &m.extra, map[string]func(*yaml.Node) error{
		"method":        func(n *yaml.Node) error { return n.Decode(&m.Method) },
		"pattern":       func(n *yaml.Node) error { return n.Decode(&m.Pattern) },
		"jaccard":       func(n *yaml.Node) error { return n.Decode(&m.Jaccard) },
		"entropy_delta": func(n *yaml.Node) error { return n.Decode(&m.EntropyDelta) },
		"shared_verbs":  func(n *yaml.Node) error { return n.Decode(&m.SharedVerbs) },
		"run":           func(n *yaml.Node) error { return n.Decode(&m.Run) },
	})
}

// MarshalYAML implements yaml.Marshaler.
func (m EdgeMeta) MarshalYAML() (any, error) {
	return encodeMapping(m.extra, metaKeys, map[string]fieldEncoder{
		"method":  omitEmptyStr(m.Method),
		"pattern": omitEmptyStr(m.Pattern),
		"jaccard": func() (*yaml.Node, error) {
			if m.Jaccard == nil {
				return nil, nil
			}
			return valueNode(*m.Jaccard)
		},
		"entropy_delta": func() (*yaml.Node, error) {
			if m.EntropyDelta == nil {
				return nil, nil
			}
			return valueNode(*m.EntropyDelta)
		},
		"shared_verbs": omitEmptyStrs(m.SharedVerbs),
		"run":          omitEmptyStr(m.Run),
	})
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *TextStats) UnmarshalYAML(node *yaml.Node) error {
	return decodeMapping(node, &s.extra, map[string]func(*yaml.Node) error{
		"hash":   func(n *yaml.Node) error { return n.Decode(&s.Hash) },
		"tokens": func(n *yaml.Node) error { return n.Decode(&s.Tokens) },
		"freq":   func(n *yaml.Node) error { return n.Decode(&s.Freq) },
	})
}

// MarshalYAML implements yaml.Marshaler.
func (s *TextStats) MarshalYAML() (any, error) {
	return encodeMapping(s.extra, statsKeys, map[string]fieldEncoder{
		"hash":   omitEmptyStr(s.Hash),
		"tokens": omitEmptyStrs(s.Tokens),
		"freq": func() (*yaml.Node, error) {
			if len(s.Freq) == 0 {
				return nil, nil
			}
			return valueNode(s.Freq)
		},
	})
}

package capability

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// extraFields preserves what the current schema does not know about a YAML
// mapping: every unknown key with its original node, plus the full key order
// of the source mapping. A load→save cycle therefore never drops or reorders
// fields written by a newer tool or by hand.
type extraFields struct {
	order []string
	nodes map[string]*yaml.Node
}

// fieldEncoder produces the node for one known key. A nil node means the
// field is omitted from output.
type fieldEncoder func() (*yaml.Node, error)

// decodeMapping walks a mapping node, dispatching known keys to their decode
// functions and stashing everything else in ex.
func decodeMapping(node *yaml.Node, ex *extraFields, known map[string]func(*yaml.Node) error) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got %s", nodeKindName(node))
	}
	ex.order = ex.order[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		ex.order = append(ex.order, k.Value)
		if dec, ok := known[k.Value]; ok {
			if err := dec(v); err != nil {
				return fmt.Errorf("field %q: %w", k.Value, err)
			}
			// A known field loaded empty would be dropped by its omit-empty
			// encoder; keep the source node so the key survives the cycle.
			if isEmptyNode(v) {
				if ex.nodes == nil {
					ex.nodes = make(map[string]*yaml.Node)
				}
				ex.nodes[k.Value] = v
			}
			continue
		}
		if ex.nodes == nil {
			ex.nodes = make(map[string]*yaml.Node)
		}
		ex.nodes[k.Value] = v
	}
	return nil
}

// isEmptyNode reports whether a node holds no value: an empty or null
// scalar, or a sequence/mapping with no content.
func isEmptyNode(n *yaml.Node) bool {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value == ""
	case yaml.SequenceNode, yaml.MappingNode:
		return len(n.Content) == 0
	}
	return false
}

// encodeMapping rebuilds a mapping node. Keys seen at load time come out in
// their original order (unknown keys reuse their original nodes verbatim);
// known keys never seen before are appended in canonical order.
func encodeMapping(ex extraFields, canonical []string, enc map[string]fieldEncoder) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	emitted := make(map[string]bool, len(ex.order))
	appendPair := func(key string, val *yaml.Node) {
		m.Content = append(m.Content, strNode(key), val)
	}
	for _, key := range ex.order {
		if emitted[key] {
			continue
		}
		emitted[key] = true
		if fn, ok := enc[key]; ok {
			n, err := fn()
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			switch {
			case n != nil:
				appendPair(key, n)
			case ex.nodes[key] != nil:
				// field is still empty; re-emit the source node as loaded
				appendPair(key, ex.nodes[key])
			}
			continue
		}
		if n, ok := ex.nodes[key]; ok {
			appendPair(key, n)
		}
	}
	for _, key := range canonical {
		if emitted[key] {
			continue
		}
		n, err := enc[key]()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		if n != nil {
			appendPair(key, n)
		}
	}
	return m, nil
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func valueNode(v any) (*yaml.Node, error) {
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

func nodeKindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}

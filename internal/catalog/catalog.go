// Package catalog reads the external element catalog: a directory tree of
// ELEMENT.md files with YAML frontmatter, one per element, grouped by
// element type. The catalog owner decides where elements live and what
// they contain; this package only extracts the descriptive fields the
// index needs.
package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kamusis/capindex/internal/capability"
)

// ElementFile is the filename scanned for inside each element directory.
const ElementFile = "ELEMENT.md"

// Element is one catalog entry: the minimal descriptive fields plus any
// custom frontmatter the core never interprets.
type Element struct {
	Ref         capability.Ref
	Name        string
	Description string
	// Triggers lists verbs or phrases the element author declared
	// explicitly.
	Triggers []string
	// Custom carries all frontmatter keys the index does not recognize.
	Custom *yaml.Node
}

// Discover scans root/<type>/<id>/ELEMENT.md and returns parsed elements.
// A missing root yields an empty catalog, not an error. Elements whose
// frontmatter fails to parse are skipped and reported in the second return
// value so one bad file never hides the rest.
func Discover(root string) ([]Element, []error, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Element{}, nil, nil
		}
		return nil, nil, fmt.Errorf("cannot stat catalog root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("catalog root is not a directory: %s", root)
	}

	var out []Element
	var skipped []error
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != ElementFile {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			// not <type>/<id>/ELEMENT.md; other layouts are not ours to judge
			return nil
		}
		elemType, id := parts[0], parts[1]

		b, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("cannot read %s: %w", path, err))
			return nil
		}
		el, err := parseElement(string(b))
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		el.Ref = capability.Ref{Type: elemType, ID: id}
		if el.Name == "" {
			el.Name = id
		}
		if el.Description == "" {
			el.Description = inferDescriptionFromBody(bodyOf(string(b)))
		}
		out = append(out, el)
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, skipped, fmt.Errorf("cannot scan catalog: %w", err)
	}
	return out, skipped, nil
}

// parseElement extracts the known frontmatter keys and keeps the rest as
// an opaque custom node.
func parseElement(content string) (Element, error) {
	fmText, ok := frontmatterOf(content)
	if !ok {
		return Element{}, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(fmText), &doc); err != nil {
		return Element{}, fmt.Errorf("invalid frontmatter YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return Element{}, nil
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return Element{}, fmt.Errorf("frontmatter is not a mapping")
	}

	var el Element
	custom := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		k, v := mapping.Content[i], mapping.Content[i+1]
		switch strings.ToLower(k.Value) {
		case "name":
			el.Name = strings.TrimSpace(v.Value)
		case "description":
			el.Description = strings.TrimSpace(v.Value)
		case "triggers":
			if err := v.Decode(&el.Triggers); err != nil {
				return Element{}, fmt.Errorf("invalid triggers list: %w", err)
			}
		default:
			custom.Content = append(custom.Content, k, v)
		}
	}
	if len(custom.Content) > 0 {
		el.Custom = custom
	}
	return el, nil
}

func frontmatterOf(content string) (string, bool) {
	s := strings.TrimPrefix(content, "\uFEFF")
	if !strings.HasPrefix(s, "---") {
		return "", false
	}
	parts := strings.SplitN(s, "---", 3)
	if len(parts) < 3 {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func bodyOf(content string) string {
	s := strings.TrimPrefix(content, "\uFEFF")
	parts := strings.SplitN(s, "---", 3)
	if len(parts) < 3 {
		return content
	}
	return strings.TrimPrefix(parts[2], "\n")
}

func inferDescriptionFromBody(body string) string {
	for _, ln := range strings.Split(body, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" || strings.HasPrefix(ln, "#") {
			continue
		}
		return ln
	}
	return ""
}

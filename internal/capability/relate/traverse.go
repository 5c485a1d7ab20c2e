package relate

import (
	"sort"

	"github.com/kamusis/capindex/internal/capability"
)

// DefaultMaxHops bounds path searches when the caller does not say.
const DefaultMaxHops = 6

// DefaultConnectedDepth bounds connected-element queries.
const DefaultConnectedDepth = 3

// TraverseOptions filters and bounds a graph query. The zero value means:
// directed edges only, default hop bound, any strength, any type.
type TraverseOptions struct {
	MaxHops int
	// Bidirectional also walks edges backwards, treating the graph as
	// undirected.
	Bidirectional bool
	MinStrength   float64
	// Types restricts traversal to these relationship types when non-empty.
	Types []string
}

func (o TraverseOptions) maxHops(fallback int) int {
	if o.MaxHops > 0 {
		return o.MaxHops
	}
	return fallback
}

func (o TraverseOptions) allows(edge capability.Edge) bool {
	if edge.Strength < o.MinStrength {
		return false
	}
	if len(o.Types) == 0 {
		return true
	}
	for _, t := range o.Types {
		if edge.Type == t {
			return true
		}
	}
	return false
}

// PathStep is one hop of a found path: the edge followed and the node it
// was followed from.
type PathStep struct {
	From capability.Ref
	Edge capability.Edge
}

// FindPath runs a breadth-first search from one element to another and
// returns the shortest path as an ordered edge list. A visited set makes
// termination certain on cyclic graphs; an unreachable target within the
// hop bound yields ok=false, never an error. From == to yields an empty
// path with ok=true.
func (m *Manager) FindPath(idx *capability.Index, from, to capability.Ref, opts TraverseOptions) (path []PathStep, ok bool) {
	if _, exists := idx.Entry(from); !exists {
		return nil, false
	}
	if from == to {
		return []PathStep{}, true
	}
	adj := buildAdjacency(idx, opts)
	maxHops := opts.maxHops(DefaultMaxHops)

	order := []bfsVisit{{ref: from, prev: -1}}
	visited := map[capability.Ref]bool{from: true}

	for head := 0; head < len(order); head++ {
		cur := order[head]
		if cur.hops >= maxHops {
			continue
		}
		for _, step := range adj[cur.ref] {
			next := step.to
			if visited[next] {
				continue
			}
			visited[next] = true
			order = append(order, bfsVisit{
				ref:  next,
				prev: head,
				step: PathStep{From: cur.ref, Edge: step.edge},
				hops: cur.hops + 1,
			})
			if next == to {
				return unwind(order, len(order)-1), true
			}
		}
	}
	return nil, false
}

// bfsVisit is one dequeued node plus the back-pointer used to rebuild the
// path once the target is reached.
type bfsVisit struct {
	ref  capability.Ref
	prev int // index into the visit order; -1 for the root
	step PathStep
	hops int
}

func unwind(order []bfsVisit, last int) []PathStep {
	var rev []PathStep
	for i := last; order[i].prev >= 0; i = order[i].prev {
		rev = append(rev, order[i].step)
	}
	path := make([]PathStep, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

// ConnectedElement is one element reachable from the query root.
type ConnectedElement struct {
	Ref   capability.Ref
	Depth int
	// Edge is the edge this element was first reached through; Strength is
	// its strength.
	Edge     capability.Edge
	Strength float64
}

// ConnectedElements returns all elements reachable within the depth bound,
// ordered by depth ascending then strength descending, ties broken by
// reference. The visited set guarantees termination on cycles.
func (m *Manager) ConnectedElements(idx *capability.Index, root capability.Ref, opts TraverseOptions) []ConnectedElement {
	if _, exists := idx.Entry(root); !exists {
		return nil
	}
	adj := buildAdjacency(idx, opts)
	maxDepth := opts.maxHops(DefaultConnectedDepth)

	type frontier struct {
		ref   capability.Ref
		depth int
	}
	queue := []frontier{{ref: root}}
	visited := map[capability.Ref]bool{root: true}
	var out []ConnectedElement

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, step := range adj[cur.ref] {
			if visited[step.to] {
				continue
			}
			visited[step.to] = true
			out = append(out, ConnectedElement{
				Ref:      step.to,
				Depth:    cur.depth + 1,
				Edge:     step.edge,
				Strength: step.edge.Strength,
			})
			queue = append(queue, frontier{ref: step.to, depth: cur.depth + 1})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].Ref.String() < out[j].Ref.String()
	})
	return out
}

// TypeStats aggregates one relationship type for observability.
type TypeStats struct {
	Count        int
	MeanStrength float64
}

// RelationshipStats returns per-type edge counts and mean strengths.
func (m *Manager) RelationshipStats(idx *capability.Index) map[string]TypeStats {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	_ = idx.Each(func(e *capability.Entry) error {
		for _, edge := range e.Relationships {
			counts[edge.Type]++
			sums[edge.Type] += edge.Strength
		}
		return nil
	})
	out := make(map[string]TypeStats, len(counts))
	for t, n := range counts {
		out[t] = TypeStats{Count: n, MeanStrength: sums[t] / float64(n)}
	}
	return out
}

type adjStep struct {
	to   capability.Ref
	edge capability.Edge
}

// buildAdjacency materializes the filtered adjacency lists once per query,
// in deterministic order. With Bidirectional set, every edge is walkable
// from both ends.
func buildAdjacency(idx *capability.Index, opts TraverseOptions) map[capability.Ref][]adjStep {
	adj := make(map[capability.Ref][]adjStep)
	_ = idx.Each(func(e *capability.Entry) error {
		from := e.Ref()
		for _, edge := range e.Relationships {
			if !opts.allows(edge) {
				continue
			}
			if _, ok := idx.Entry(edge.Target); !ok {
				// dangling target: element was removed, edge not yet pruned
				continue
			}
			adj[from] = append(adj[from], adjStep{to: edge.Target, edge: edge})
			if opts.Bidirectional {
				adj[edge.Target] = append(adj[edge.Target], adjStep{to: from, edge: edge})
			}
		}
		return nil
	})
	return adj
}

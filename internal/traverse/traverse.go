// Package traverse implements the three read-only graph algorithms of
// spec §4.6: capability-constrained BFS, all-simple-paths, and
// subgraph extraction. All three are pure with respect to the graph
// and safe to invoke concurrently from multiple readers, since they
// only call graphstore.Graph's already-locked accessor methods.
//
// Grounded on the teacher's internal/graph/lazy_query.go iterator
// naming convention (Next/Collect/Close-style result shaping),
// reimplemented over the in-memory graphstore.Graph since the Neo4j
// driver that file depends on was dropped (DESIGN.md, dropped deps).
package traverse

import (
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// EdgePredicate decides whether an edge kind may be followed.
type EdgePredicate func(model.EdgeKind) bool

// NodePredicate decides whether a node qualifies.
type NodePredicate func(model.Node) bool

// BFSOptions configures BFS (spec §4.6a).
type BFSOptions struct {
	EdgePredicate         EdgePredicate
	IntermediatePredicate NodePredicate // must hold for every interior node on the path
	TargetPredicate       NodePredicate
	GlobalFilter          NodePredicate // optional, applied to every visited node
	DepthBound            int           // 0 means unbounded; inclusive otherwise
}

// BFS walks from seed following edges EdgePredicate allows, visiting
// each node once via a seen-set keyed on handle, and returns every
// handle whose node satisfies TargetPredicate. Tie-break order is the
// deterministic insertion order of each node's outgoing edges
// (spec §4.6a). DepthBound is inclusive: 1 returns only direct
// neighbors satisfying the target predicate.
func BFS(g *graphstore.Graph, seed graphstore.Handle, opts BFSOptions) []graphstore.Handle {
	type frontierEntry struct {
		handle graphstore.Handle
		depth  int
	}

	seen := map[graphstore.Handle]struct{}{seed: {}}
	queue := []frontierEntry{{handle: seed, depth: 0}}
	var matches []graphstore.Handle

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.handle != seed {
			node := g.Node(cur.handle)
			if opts.GlobalFilter != nil && !opts.GlobalFilter(node) {
				continue
			}
			if opts.TargetPredicate != nil && opts.TargetPredicate(node) {
				matches = append(matches, cur.handle)
			}
			if opts.IntermediatePredicate != nil && !opts.IntermediatePredicate(node) {
				continue
			}
		}

		if opts.DepthBound > 0 && cur.depth >= opts.DepthBound {
			continue
		}

		for _, e := range g.OutEdges(cur.handle) {
			if opts.EdgePredicate != nil && !opts.EdgePredicate(e.Kind) {
				continue
			}
			if _, ok := seen[e.To]; ok {
				continue
			}
			seen[e.To] = struct{}{}
			queue = append(queue, frontierEntry{handle: e.To, depth: cur.depth + 1})
		}
	}
	return matches
}

// Path is a vertex sequence with no repeated handle.
type Path []graphstore.Handle

// PathsResult pairs a matching descendant with every simple path that
// reaches it from the seed (spec §4.6b).
type PathsResult struct {
	Descendant graphstore.Handle
	Paths      []Path
}

// AllSimplePaths walks a DFS with a path stack and backtracking,
// emitting a path whenever the current head satisfies TargetPredicate
// and IntermediatePredicate held for every interior vertex. Paths are
// finite because simple (no repeated vertex), but the search is
// exponential in the worst case — callers must bound DepthBound or
// prune via GlobalFilter for adversarial inputs (spec §4.6b).
func AllSimplePaths(g *graphstore.Graph, seed graphstore.Handle, opts BFSOptions) []PathsResult {
	byDescendant := make(map[graphstore.Handle]*PathsResult)
	var order []graphstore.Handle

	onStack := map[graphstore.Handle]struct{}{seed: {}}
	stack := Path{seed}

	var walk func(cur graphstore.Handle, depth int)
	walk = func(cur graphstore.Handle, depth int) {
		if cur != seed {
			node := g.Node(cur)
			if opts.GlobalFilter != nil && !opts.GlobalFilter(node) {
				return
			}
			if opts.TargetPredicate != nil && opts.TargetPredicate(node) {
				pathCopy := make(Path, len(stack))
				copy(pathCopy, stack)
				r, ok := byDescendant[cur]
				if !ok {
					r = &PathsResult{Descendant: cur}
					byDescendant[cur] = r
					order = append(order, cur)
				}
				r.Paths = append(r.Paths, pathCopy)
			}
			if opts.IntermediatePredicate != nil && !opts.IntermediatePredicate(node) {
				return
			}
		}

		if opts.DepthBound > 0 && depth >= opts.DepthBound {
			return
		}

		for _, e := range g.OutEdges(cur) {
			if opts.EdgePredicate != nil && !opts.EdgePredicate(e.Kind) {
				continue
			}
			if _, onPath := onStack[e.To]; onPath {
				continue
			}
			onStack[e.To] = struct{}{}
			stack = append(stack, e.To)
			walk(e.To, depth+1)
			stack = stack[:len(stack)-1]
			delete(onStack, e.To)
		}
	}
	walk(seed, 0)

	out := make([]PathsResult, 0, len(order))
	for _, h := range order {
		out = append(out, *byDescendant[h])
	}
	return out
}

// Subgraph is an induced view of a graph: every visited node plus
// every edge whose endpoints are both in that set (spec §4.6c).
type Subgraph struct {
	Nodes []graphstore.Handle
	Edges []graphstore.Edge
}

// ExtractSubgraph returns the induced subgraph reachable from seed
// within depth, following every edge kind, for visualization
// (spec §4.6c).
func ExtractSubgraph(g *graphstore.Graph, seed graphstore.Handle, depth int) Subgraph {
	visited := BFS(g, seed, BFSOptions{
		TargetPredicate: func(model.Node) bool { return true },
		DepthBound:      depth,
	})

	nodeSet := map[graphstore.Handle]struct{}{seed: {}}
	nodes := []graphstore.Handle{seed}
	for _, h := range visited {
		if _, dup := nodeSet[h]; dup {
			continue
		}
		nodeSet[h] = struct{}{}
		nodes = append(nodes, h)
	}

	var edges []graphstore.Edge
	for _, h := range nodes {
		for _, e := range g.OutEdges(h) {
			if _, ok := nodeSet[e.To]; ok {
				edges = append(edges, e)
			}
		}
	}

	return Subgraph{Nodes: nodes, Edges: edges}
}

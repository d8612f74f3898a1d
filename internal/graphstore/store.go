// Package graphstore implements the access graph's storage contract
// (spec §4.3): a typed, heterogeneous directed graph with stable
// indices, a NodeName index for O(1) lookup, and deferred-edge
// reporting for edges whose endpoints haven't been built yet.
//
// No graph library appears anywhere in the retrieved example corpus
// (DESIGN.md, C3), so this is a small hand-rolled arena graph: nodes
// live in an append-only slice and are addressed by Handle, an index
// into that slice that never changes once assigned — exactly the
// "stable across mutations" contract spec §4.3 asks for.
package graphstore

import (
	"fmt"
	"sync"

	"github.com/jettylabs/jetty-access-control/internal/model"
)

// Handle is a stable reference to a node. Handles remain valid for the
// lifetime of the Graph that issued them (spec §4.3).
type Handle int

const invalidHandle Handle = -1

// Edge is one directed, typed edge between two handles.
type Edge struct {
	From Handle
	To   Handle
	Kind model.EdgeKind
}

type edgeKey struct {
	from Handle
	to   Handle
	kind model.EdgeKind
}

// DeferredEdgeError reports edges whose endpoints did not exist at
// AddEdge time (spec §4.3: "callers pre-batch nodes, then edges, so
// that deferred edges referencing not-yet-built nodes become a
// recoverable error reported once per build").
type DeferredEdgeError struct {
	From, To model.NodeName
	Kind     model.EdgeKind
	Missing  []model.NodeName
}

func (e *DeferredEdgeError) Error() string {
	return fmt.Sprintf("graphstore: edge %s -[%s]-> %s references missing node(s) %v", e.From, e.Kind, e.To, e.Missing)
}

// Graph is an in-memory, heterogeneous directed graph.
type Graph struct {
	mu       sync.RWMutex
	nodes    []model.Node
	index    map[model.NodeName]Handle
	outEdges map[Handle][]Edge
	edgeSeen map[edgeKey]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index:    make(map[model.NodeName]Handle),
		outEdges: make(map[Handle][]Edge),
		edgeSeen: make(map[edgeKey]struct{}),
	}
}

// AddNode upserts node by its NodeName (spec §4.3). On a hit, the
// existing and incoming nodes are merged per the model package's merge
// protocol (spec §4.2); a merge conflict is returned unmodified so the
// builder can attach path context and abort.
func (g *Graph) AddNode(node model.Node) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := node.Name()
	if h, ok := g.index[name]; ok {
		merged, err := model.Merge(g.nodes[h], node)
		if err != nil {
			return invalidHandle, err
		}
		g.nodes[h] = merged
		return h, nil
	}

	h := Handle(len(g.nodes))
	g.nodes = append(g.nodes, node)
	g.index[name] = h
	return h, nil
}

// AddEdge inserts the edge and its symmetric inverse atomically
// (spec §3 invariant 1). If either endpoint is absent, it returns a
// *DeferredEdgeError and adds nothing.
func (g *Graph) AddEdge(from, to model.NodeName, kind model.EdgeKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fromH, fromOK := g.index[from]
	toH, toOK := g.index[to]
	if !fromOK || !toOK {
		var missing []model.NodeName
		if !fromOK {
			missing = append(missing, from)
		}
		if !toOK {
			missing = append(missing, to)
		}
		return &DeferredEdgeError{From: from, To: to, Kind: kind, Missing: missing}
	}

	g.addDirectedLocked(fromH, toH, kind)
	g.addDirectedLocked(toH, fromH, kind.Inverse())
	return nil
}

func (g *Graph) addDirectedLocked(from, to Handle, kind model.EdgeKind) {
	key := edgeKey{from: from, to: to, kind: kind}
	if _, ok := g.edgeSeen[key]; ok {
		return // idempotent (spec §4.2 "Edges merge ... and are idempotent")
	}
	g.edgeSeen[key] = struct{}{}
	g.outEdges[from] = append(g.outEdges[from], Edge{From: from, To: to, Kind: kind})
}

// GetHandle looks up a node by name.
func (g *Graph) GetHandle(name model.NodeName) (Handle, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.index[name]
	return h, ok
}

// Node returns the node payload at h.
func (g *Graph) Node(h Handle) model.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if int(h) < 0 || int(h) >= len(g.nodes) {
		return nil
	}
	return g.nodes[h]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Nodes returns every node payload in insertion order (used by
// persistence and tests; never mutated by callers).
func (g *Graph) Nodes() []model.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]model.Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns every directed edge (both directions) in insertion
// order — deterministic given deterministic build order (spec §8
// invariant 3).
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Edge
	for h := 0; h < len(g.nodes); h++ {
		out = append(out, g.outEdges[Handle(h)]...)
	}
	return out
}

// Neighbors returns the handles reachable from h via one edge
// satisfying predicate, in the deterministic insertion order of h's
// outgoing edges (spec §4.6 tie-break rule).
func (g *Graph) Neighbors(h Handle, predicate func(model.EdgeKind) bool) []Handle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Handle
	for _, e := range g.outEdges[h] {
		if predicate == nil || predicate(e.Kind) {
			out = append(out, e.To)
		}
	}
	return out
}

// OutEdges returns the raw outgoing edges of h, preserving insertion
// order, for callers that need the edge kind alongside the target.
func (g *Graph) OutEdges(h Handle) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, len(g.outEdges[h]))
	copy(out, g.outEdges[h])
	return out
}

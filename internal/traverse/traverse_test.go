package traverse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// buildChain creates user -MemberOf-> groupA -MemberOf-> groupB, a
// two-hop chain, and returns the graph plus each handle.
func buildChain(t *testing.T) (*graphstore.Graph, graphstore.Handle, graphstore.Handle, graphstore.Handle) {
	t.Helper()
	g := graphstore.New()
	u := &model.UserNode{Email: "erin@co.com", Metadata: map[string]string{}}
	ga := &model.GroupNode{GroupName: "team", Origin: "snow", Metadata: map[string]string{}}
	gb := &model.GroupNode{GroupName: "org", Origin: "snow", Metadata: map[string]string{}}

	uH, err := g.AddNode(u)
	require.NoError(t, err)
	gaH, err := g.AddNode(ga)
	require.NoError(t, err)
	gbH, err := g.AddNode(gb)
	require.NoError(t, err)

	require.NoError(t, g.AddEdge(u.Name(), ga.Name(), model.EdgeMemberOf))
	require.NoError(t, g.AddEdge(ga.Name(), gb.Name(), model.EdgeMemberOf))

	return g, uH, gaH, gbH
}

func TestBFSRespectsDepthBound(t *testing.T) {
	g, uH, gaH, gbH := buildChain(t)

	direct := BFS(g, uH, BFSOptions{
		EdgePredicate:   func(k model.EdgeKind) bool { return k == model.EdgeMemberOf },
		TargetPredicate: func(model.Node) bool { return true },
		DepthBound:      1,
	})
	assert.Equal(t, []graphstore.Handle{gaH}, direct)

	transitive := BFS(g, uH, BFSOptions{
		EdgePredicate:   func(k model.EdgeKind) bool { return k == model.EdgeMemberOf },
		TargetPredicate: func(model.Node) bool { return true },
		DepthBound:      2,
	})
	assert.ElementsMatch(t, []graphstore.Handle{gaH, gbH}, transitive)
}

func TestAllSimplePathsFindsUniquePath(t *testing.T) {
	g, uH, gaH, gbH := buildChain(t)

	results := AllSimplePaths(g, uH, BFSOptions{
		EdgePredicate: func(k model.EdgeKind) bool { return k == model.EdgeMemberOf },
		TargetPredicate: func(n model.Node) bool {
			return n.Name() == (&model.GroupNode{GroupName: "org", Origin: "snow"}).Name()
		},
	})

	require.Len(t, results, 1)
	assert.Equal(t, gbH, results[0].Descendant)
	require.Len(t, results[0].Paths, 1)
	assert.Equal(t, Path{uH, gaH, gbH}, results[0].Paths[0])
}

func TestExtractSubgraphInducesEdgesAmongVisitedNodes(t *testing.T) {
	g, uH, gaH, gbH := buildChain(t)

	sub := ExtractSubgraph(g, uH, 2)
	assert.ElementsMatch(t, []graphstore.Handle{uH, gaH, gbH}, sub.Nodes)
	assert.NotEmpty(t, sub.Edges)
	for _, e := range sub.Edges {
		assert.Contains(t, sub.Nodes, e.From)
		assert.Contains(t, sub.Nodes, e.To)
	}
}

package graphstore

import (
	"testing"

	"github.com/jettylabs/jetty-access-control/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNodeUpsertsByName(t *testing.T) {
	g := New()
	u1 := &model.UserNode{Email: "alice@co.com", ConnectorsSeen: model.NewStringSet("snowflake"), Metadata: map[string]string{}}
	u2 := &model.UserNode{Email: "alice@co.com", ConnectorsSeen: model.NewStringSet("tableau"), Metadata: map[string]string{}}

	h1, err := g.AddNode(u1)
	require.NoError(t, err)
	h2, err := g.AddNode(u2)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "duplicate NodeName must resolve to the same handle")
	assert.Equal(t, 1, g.NodeCount())

	merged := g.Node(h1).(*model.UserNode)
	assert.True(t, merged.ConnectorsSeen.Has("snowflake"))
	assert.True(t, merged.ConnectorsSeen.Has("tableau"))
}

func TestAddEdgeIsSymmetric(t *testing.T) {
	g := New()
	u := &model.UserNode{Email: "bob@co.com", Metadata: map[string]string{}}
	gr := &model.GroupNode{GroupName: "eng", Origin: "snowflake", Metadata: map[string]string{}}

	_, err := g.AddNode(u)
	require.NoError(t, err)
	_, err = g.AddNode(gr)
	require.NoError(t, err)

	err = g.AddEdge(u.Name(), gr.Name(), model.EdgeMemberOf)
	require.NoError(t, err)

	uH, _ := g.GetHandle(u.Name())
	grH, _ := g.GetHandle(gr.Name())

	uOut := g.Neighbors(uH, func(k model.EdgeKind) bool { return k == model.EdgeMemberOf })
	grOut := g.Neighbors(grH, func(k model.EdgeKind) bool { return k == model.EdgeIncludes })

	require.Len(t, uOut, 1)
	require.Len(t, grOut, 1)
	assert.Equal(t, grH, uOut[0])
	assert.Equal(t, uH, grOut[0])
}

func TestAddEdgeDeferredWhenEndpointMissing(t *testing.T) {
	g := New()
	u := &model.UserNode{Email: "carol@co.com", Metadata: map[string]string{}}
	_, err := g.AddNode(u)
	require.NoError(t, err)

	missingGroup := model.GroupNodeName("ghost", "snowflake")
	err = g.AddEdge(u.Name(), missingGroup, model.EdgeMemberOf)
	require.Error(t, err)
	var deferred *DeferredEdgeError
	require.ErrorAs(t, err, &deferred)
	assert.Contains(t, deferred.Missing, missingGroup)
}

func TestAddEdgeIdempotent(t *testing.T) {
	g := New()
	u := &model.UserNode{Email: "dan@co.com", Metadata: map[string]string{}}
	gr := &model.GroupNode{GroupName: "eng", Origin: "snowflake", Metadata: map[string]string{}}
	g.AddNode(u)
	g.AddNode(gr)

	require.NoError(t, g.AddEdge(u.Name(), gr.Name(), model.EdgeMemberOf))
	require.NoError(t, g.AddEdge(u.Name(), gr.Name(), model.EdgeMemberOf))

	uH, _ := g.GetHandle(u.Name())
	assert.Len(t, g.OutEdges(uH), 1)
}

func TestMergeConflictIsFatal(t *testing.T) {
	g := New()
	gr1 := &model.GroupNode{GroupName: "admins", Origin: "snow", Metadata: map[string]string{"owner": "alice"}}
	gr2 := &model.GroupNode{GroupName: "admins", Origin: "snow", Metadata: map[string]string{"owner": "bob"}}

	_, err := g.AddNode(gr1)
	require.NoError(t, err)
	_, err = g.AddNode(gr2)
	require.Error(t, err, "conflicting metadata values must be a fatal merge error")
}

package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettylabs/jetty-access-control/internal/errors"
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

func buildGraph(t *testing.T) *graphstore.Graph {
	t.Helper()
	g := graphstore.New()
	u := &model.UserNode{Email: "alice@co.com", Metadata: map[string]string{}}
	gr := &model.GroupNode{GroupName: "eng", Origin: "snowflake", Metadata: map[string]string{}}
	asset := &model.AssetNode{CUAL: "snowflake://acct/db", AssetType: "database", Connectors: model.NewStringSet("snowflake"), Metadata: map[string]string{}}

	_, err := g.AddNode(u)
	require.NoError(t, err)
	_, err = g.AddNode(gr)
	require.NoError(t, err)
	_, err = g.AddNode(asset)
	require.NoError(t, err)

	require.NoError(t, g.AddEdge(u.Name(), gr.Name(), model.EdgeMemberOf))
	return g
}

func TestSerializeIsDeterministicForEqualInput(t *testing.T) {
	g1 := buildGraph(t)
	g2 := buildGraph(t)

	b1, err := Serialize(g1)
	require.NoError(t, err)
	b2, err := Serialize(g2)
	require.NoError(t, err)

	assert.Equal(t, b1, b2, "same input list must serialize byte-equal")
}

func TestDeserializeRoundTripsGraph(t *testing.T) {
	g := buildGraph(t)
	data, err := Serialize(g)
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, g.NodeCount(), restored.NodeCount())

	uH, ok := restored.GetHandle(model.UserName("alice@co.com"))
	require.True(t, ok)
	grH, ok := restored.GetHandle(model.GroupNodeName("eng", "snowflake"))
	require.True(t, ok)

	neighbors := restored.Neighbors(uH, func(k model.EdgeKind) bool { return k == model.EdgeMemberOf })
	require.Len(t, neighbors, 1)
	assert.Equal(t, grH, neighbors[0])

	reserialized, err := Serialize(restored)
	require.NoError(t, err)
	assert.Equal(t, data, reserialized, "deserialize(serialize(G)) must reserialize identically")
}

func TestDeserializeRejectsSchemaVersionMismatch(t *testing.T) {
	_, err := Deserialize([]byte(`{"schema_version": 999, "nodes": [], "edges": []}`))
	require.Error(t, err)
	kind, ok := errors.GetKind(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindIntegrity, kind)
}

func TestStoreSaveLoadGraphAndLastFetch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "graph.bin")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	g := buildGraph(t)
	require.NoError(t, store.SaveGraph(g))

	restored, ok, err := store.LoadGraph()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, g.NodeCount(), restored.NodeCount())

	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetLastFetch("snowflake", now))

	got, ok, err := store.LastFetch("snowflake")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, now.Equal(got))

	_, ok, err = store.LastFetch("never-fetched")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreLoadGraphEmptyWhenNeverSaved(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.bin")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.LoadGraph()
	require.NoError(t, err)
	assert.False(t, ok)
}

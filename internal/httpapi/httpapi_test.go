package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

func buildTestGraph(t *testing.T) *graphstore.Graph {
	t.Helper()
	g := graphstore.New()

	u := &model.UserNode{Email: "alice@co.com", Metadata: map[string]string{}}
	gr := &model.GroupNode{GroupName: "eng", Origin: "snowflake", Metadata: map[string]string{}}
	asset := &model.AssetNode{CUAL: "snowflake://acct/db", AssetType: "database", Connectors: model.NewStringSet("snowflake"), Metadata: map[string]string{}}
	tag := &model.TagNode{TagName: "pii", Metadata: map[string]string{}}

	for _, n := range []model.Node{u, gr, asset, tag} {
		_, err := g.AddNode(n)
		require.NoError(t, err)
	}

	require.NoError(t, g.AddEdge(u.Name(), gr.Name(), model.EdgeMemberOf))
	require.NoError(t, g.AddEdge(asset.Name(), tag.Name(), model.EdgeTaggedAs))
	return g
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(out))
}

func TestHandleNodesListsEverything(t *testing.T) {
	s := New(buildTestGraph(t), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/nodes", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var names []string
	decodeJSON(t, w, &names)
	assert.Len(t, names, 4)
}

func TestHandleUserDirectGroups(t *testing.T) {
	s := New(buildTestGraph(t), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/user/alice@co.com/direct_groups", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var groups []string
	decodeJSON(t, w, &groups)
	require.Len(t, groups, 1)
	assert.Contains(t, groups[0], "eng@snowflake")
}

func TestHandleUserUnknownReturns404(t *testing.T) {
	s := New(buildTestGraph(t), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/user/ghost@co.com/direct_groups", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGroupDirectMembersUsers(t *testing.T) {
	s := New(buildTestGraph(t), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/group/snowflake::eng/direct_members_users", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var users []string
	decodeJSON(t, w, &users)
	require.Len(t, users, 1)
	assert.Contains(t, users[0], "alice@co.com")
}

func TestHandleAssetTags(t *testing.T) {
	s := New(buildTestGraph(t), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/asset/tags?id=snowflake://acct/db", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var tags []string
	decodeJSON(t, w, &tags)
	require.Len(t, tags, 1)
	assert.Contains(t, tags[0], "pii")
}

func TestHandleLastFetchWithoutStoreReturnsEmptyMap(t *testing.T) {
	s := New(buildTestGraph(t), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/last_fetch", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]string
	decodeJSON(t, w, &out)
	assert.Empty(t, out)
}

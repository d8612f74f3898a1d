package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

func sampleGraph(t *testing.T) *graphstore.Graph {
	t.Helper()
	g := graphstore.New()

	eng := &model.GroupNode{GroupName: "ENGINEERING", Origin: "snowflake", ConnectorsSeen: model.NewStringSet("snowflake"), Metadata: map[string]string{}}
	_, err := g.AddNode(eng)
	require.NoError(t, err)

	user := &model.UserNode{
		Email:          "ada@example.com",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		PlatformIDs:    map[string]string{"snowflake": "ADA"},
		OtherNames:     model.NewStringSet(),
		ConnectorsSeen: model.NewStringSet("snowflake"),
		Metadata:       map[string]string{},
	}
	_, err = g.AddNode(user)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(user.Name(), eng.Name(), model.EdgeMemberOf))

	asset := &model.AssetNode{CUAL: "snowflake://acct/db/table", AssetType: "table", Connectors: model.NewStringSet("snowflake"), Metadata: map[string]string{}}
	_, err = g.AddNode(asset)
	require.NoError(t, err)

	tag := &model.TagNode{TagName: "pii", PassesValue: false, Description: "contains PII", Metadata: map[string]string{}}
	_, err = g.AddNode(tag)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(tag.Name(), asset.Name(), model.EdgeTaggedAs))

	return g
}

func TestRenderGroupsIncludesConnectorMapping(t *testing.T) {
	g := sampleGraph(t)
	var out bootstrapGroupsFile
	require.NoError(t, yaml.Unmarshal(renderGroups(g), &out))
	require.Len(t, out.Groups, 1)
	assert.Equal(t, "ENGINEERING@snowflake", out.Groups[0].Name)
	assert.Equal(t, "ENGINEERING", out.Groups[0].Connectors["snowflake"])
}

func TestRenderUsersReferencesGroupKey(t *testing.T) {
	g := sampleGraph(t)
	files := renderUsers(g)
	data, ok := files["ada_example.com"]
	require.True(t, ok)

	var out bootstrapUserFile
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, "ada@example.com", out.Email)
	assert.Equal(t, []string{"ENGINEERING@snowflake"}, out.Groups)
	assert.Equal(t, "ADA", out.Identifiers["snowflake"])
}

func TestRenderAssetsOmitsPolicies(t *testing.T) {
	g := sampleGraph(t)
	files := renderAssets(g)
	data, ok := files["acct-db-table"]
	require.True(t, ok)

	var out bootstrapAssetFile
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, "snowflake", out.Identifier.Connector)
	assert.Equal(t, "acct", out.Identifier.Authority)
	assert.Equal(t, []string{"db", "table"}, out.Identifier.Path)
}

func TestRenderTagsCapturesAppliedTo(t *testing.T) {
	g := sampleGraph(t)
	var out bootstrapTagsFile
	require.NoError(t, yaml.Unmarshal(renderTags(g), &out))
	require.Len(t, out.Tags, 1)
	assert.Equal(t, "pii", out.Tags[0].Name)
	assert.Equal(t, []string{"snowflake://acct/db/table"}, out.Tags[0].AppliedTo)
}

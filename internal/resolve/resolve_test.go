package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// wireGrant adds Asset-GovernedBy->Policy-GrantedTo->Agent-Includes->grantee.
func wireGrant(t *testing.T, g *graphstore.Graph, assetName model.NodeName, policy model.Node, agent *model.PolicyAgentNode, grantees ...model.NodeName) {
	t.Helper()
	_, err := g.AddNode(policy)
	require.NoError(t, err)
	_, err = g.AddNode(agent)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(assetName, policy.Name(), model.EdgeGovernedBy))
	require.NoError(t, g.AddEdge(policy.Name(), agent.Name(), model.EdgeGrantedTo))
	for _, grantee := range grantees {
		require.NoError(t, g.AddEdge(agent.Name(), grantee, model.EdgeIncludes))
	}
}

func TestResolveDirectPolicyGrant(t *testing.T) {
	g := graphstore.New()
	u := &model.UserNode{Email: "frank@co.com", Metadata: map[string]string{}}
	asset := &model.AssetNode{CUAL: "snowflake://acct1/db/schema/table", AssetType: "table", Metadata: map[string]string{}}
	_, err := g.AddNode(u)
	require.NoError(t, err)
	_, err = g.AddNode(asset)
	require.NoError(t, err)

	agent := &model.PolicyAgentNode{PolicyKind: "ordinary", GranteeNames: []string{u.Name().String()}}
	policy := &model.PolicyNode{Asset: asset.CUAL, AgentKind: "ordinary", AgentKey: model.Fingerprint([]string{u.Name().String()}), Privileges: model.NewStringSet("select")}
	wireGrant(t, g, asset.Name(), policy, agent, u.Name())

	r := New(g)
	perm, err := r.Resolve(u.Name(), asset.Name())
	require.NoError(t, err)
	assert.True(t, perm.Privileges.Has("select"))
	assert.Len(t, perm.Reasons, 1)
}

func TestResolveGroupMediatedGrant(t *testing.T) {
	g := graphstore.New()
	u := &model.UserNode{Email: "grace@co.com", Metadata: map[string]string{}}
	grp := &model.GroupNode{GroupName: "analysts", Origin: "snow", Metadata: map[string]string{}}
	asset := &model.AssetNode{CUAL: "snowflake://acct1/db/schema/table", AssetType: "table", Metadata: map[string]string{}}
	_, err := g.AddNode(u)
	require.NoError(t, err)
	_, err = g.AddNode(grp)
	require.NoError(t, err)
	_, err = g.AddNode(asset)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(u.Name(), grp.Name(), model.EdgeMemberOf))

	agent := &model.PolicyAgentNode{PolicyKind: "ordinary", GranteeNames: []string{grp.Name().String()}}
	policy := &model.PolicyNode{Asset: asset.CUAL, AgentKind: "ordinary", AgentKey: model.Fingerprint([]string{grp.Name().String()}), Privileges: model.NewStringSet("select")}
	wireGrant(t, g, asset.Name(), policy, agent, grp.Name())

	r := New(g)
	perm, err := r.Resolve(u.Name(), asset.Name())
	require.NoError(t, err)
	assert.True(t, perm.Privileges.Has("select"))
}

func TestResolveDefaultPolicyDoubleStarGrantsDescendant(t *testing.T) {
	g := graphstore.New()
	u := &model.UserNode{Email: "hank@co.com", Metadata: map[string]string{}}
	db := &model.AssetNode{CUAL: "snowflake://acct1/db", AssetType: "database", Metadata: map[string]string{}}
	table := &model.AssetNode{CUAL: "snowflake://acct1/db/schema/table", AssetType: "table", Metadata: map[string]string{}}
	for _, n := range []model.Node{u, db, table} {
		_, err := g.AddNode(n)
		require.NoError(t, err)
	}
	require.NoError(t, g.AddEdge(table.Name(), db.Name(), model.EdgeChildOf))

	agent := &model.PolicyAgentNode{PolicyKind: "default", GranteeNames: []string{u.Name().String()}}
	broad := &model.DefaultPolicyNode{Anchor: db.CUAL, WildcardPath: "**", TargetTypes: []string{"table"}, Privileges: model.NewStringSet("select")}
	wireGrant(t, g, db.Name(), broad, agent, u.Name())

	r := New(g)
	perm, err := r.Resolve(u.Name(), table.Name())
	require.NoError(t, err)
	assert.True(t, perm.Privileges.Has("select"))
	assert.Len(t, perm.Reasons, 1)
}

func TestResolveUnknownAssetErrors(t *testing.T) {
	g := graphstore.New()
	u := &model.UserNode{Email: "iris@co.com", Metadata: map[string]string{}}
	_, err := g.AddNode(u)
	require.NoError(t, err)

	r := New(g)
	_, err = r.Resolve(u.Name(), model.AssetName("snowflake://acct1/missing"))
	assert.Error(t, err)
}

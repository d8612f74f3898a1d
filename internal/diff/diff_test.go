package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettylabs/jetty-access-control/internal/configparser"
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

func wirePolicy(t *testing.T, g *graphstore.Graph, asset model.Node, policy *model.PolicyNode, agent *model.PolicyAgentNode, grantees ...model.NodeName) {
	t.Helper()
	_, err := g.AddNode(asset)
	require.NoError(t, err)
	_, err = g.AddNode(policy)
	require.NoError(t, err)
	_, err = g.AddNode(agent)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(asset.Name(), policy.Name(), model.EdgeGovernedBy))
	require.NoError(t, g.AddEdge(policy.Name(), agent.Name(), model.EdgeGrantedTo))
	for _, grantee := range grantees {
		require.NoError(t, g.AddEdge(agent.Name(), grantee, model.EdgeIncludes))
	}
}

func TestDiffPoliciesDetectsAdd(t *testing.T) {
	g := graphstore.New()
	desired := &configparser.ParsedConfig{
		State: configparser.CombinedPolicyState{
			Policies: map[model.PolicyRef]configparser.PolicyState{
				{Asset: "snowflake://a/db", AgentKind: "ordinary", AgentKey: "x"}: {
					Grantees: []model.NodeName{model.UserName("bob@co.com")}, Privileges: model.NewStringSet("select"), ConnectorManaged: true,
				},
			},
			DefaultPolicies: map[model.DefaultPolicyRef]configparser.DefaultPolicyState{},
		},
	}

	result := Compute(g, desired)
	require.Len(t, result.Policies, 1)
	assert.Equal(t, OpAddAgent, result.Policies[0].Op)
}

func TestDiffPoliciesSkipsRemovalOfUnmanagedObserved(t *testing.T) {
	g := graphstore.New()
	u := &model.UserNode{Email: "carl@co.com", Metadata: map[string]string{}}
	_, err := g.AddNode(u)
	require.NoError(t, err)

	asset := &model.AssetNode{CUAL: "snowflake://a/db", AssetType: "database", Metadata: map[string]string{}}
	agent := &model.PolicyAgentNode{PolicyKind: "ordinary", GranteeNames: []string{u.Name().String()}}
	policy := &model.PolicyNode{Asset: asset.CUAL, AgentKind: "ordinary", AgentKey: model.Fingerprint([]string{u.Name().String()}), Privileges: model.NewStringSet("select"), ConnectorManaged: false}
	wirePolicy(t, g, asset, policy, agent, u.Name())

	desired := &configparser.ParsedConfig{
		State: configparser.CombinedPolicyState{
			Policies:        map[model.PolicyRef]configparser.PolicyState{},
			DefaultPolicies: map[model.DefaultPolicyRef]configparser.DefaultPolicyState{},
		},
	}

	result := Compute(g, desired)
	assert.Empty(t, result.Policies)
}

func TestDiffPoliciesDetectsModify(t *testing.T) {
	g := graphstore.New()
	u := &model.UserNode{Email: "dee@co.com", Metadata: map[string]string{}}
	_, err := g.AddNode(u)
	require.NoError(t, err)

	asset := &model.AssetNode{CUAL: "snowflake://a/db", AssetType: "database", Metadata: map[string]string{}}
	agent := &model.PolicyAgentNode{PolicyKind: "ordinary", GranteeNames: []string{u.Name().String()}}
	policy := &model.PolicyNode{Asset: asset.CUAL, AgentKind: "ordinary", AgentKey: model.Fingerprint([]string{u.Name().String()}), Privileges: model.NewStringSet("select"), ConnectorManaged: true}
	wirePolicy(t, g, asset, policy, agent, u.Name())

	ref := model.PolicyRef{Asset: asset.CUAL, AgentKind: "ordinary", AgentKey: policy.AgentKey}
	desired := &configparser.ParsedConfig{
		State: configparser.CombinedPolicyState{
			Policies: map[model.PolicyRef]configparser.PolicyState{
				ref: {Grantees: []model.NodeName{u.Name()}, Privileges: model.NewStringSet("select", "insert"), ConnectorManaged: true},
			},
			DefaultPolicies: map[model.DefaultPolicyRef]configparser.DefaultPolicyState{},
		},
	}

	result := Compute(g, desired)
	require.Len(t, result.Policies, 1)
	assert.Equal(t, OpModifyAgent, result.Policies[0].Op)
	assert.True(t, result.Policies[0].AddPrivileges.Has("insert"))
}

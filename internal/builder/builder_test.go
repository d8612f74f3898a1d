package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
	"github.com/jettylabs/jetty-access-control/internal/translate"
)

func newTestBuilder() (*Builder, *graphstore.Graph, *translate.Translator) {
	g := graphstore.New()
	tr := translate.New()
	return New(g, tr), g, tr
}

func TestBuildUsersCoalescesByEmail(t *testing.T) {
	b, g, _ := newTestBuilder()
	inputs := []Input{
		{Namespace: "snowflake", Data: &connector.Data{
			Users: []connector.UserRecord{{LocalID: "u1", Email: "alice@co.com", PlatformID: "u1"}},
		}},
		{Namespace: "tableau", Data: &connector.Data{
			Users: []connector.UserRecord{{LocalID: "t1", Email: "alice@co.com", PlatformID: "t1"}},
		}},
	}

	stats, err := b.Build(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 2, stats.Users, "both records get built then merged, so the step counter reflects build attempts")

	name := model.UserName("alice@co.com")
	h, ok := g.GetHandle(name)
	require.True(t, ok)
	user := g.Node(h).(*model.UserNode)
	assert.True(t, user.ConnectorsSeen.Has("snowflake"))
	assert.True(t, user.ConnectorsSeen.Has("tableau"))
}

func TestBuildUsersSplitsWithNoSharedIdentifier(t *testing.T) {
	b, g, _ := newTestBuilder()
	inputs := []Input{
		{Namespace: "snowflake", Data: &connector.Data{
			Users: []connector.UserRecord{{LocalID: "u1", PlatformID: "u1"}},
		}},
		{Namespace: "tableau", Data: &connector.Data{
			Users: []connector.UserRecord{{LocalID: "t1", PlatformID: "t1"}},
		}},
	}

	_, err := b.Build(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount(), "no shared identifier means the two records stay split")
}

func TestBuildUsersMergesOutOfOrderOtherNames(t *testing.T) {
	b, g, _ := newTestBuilder()
	inputs := []Input{
		{Namespace: "snowflake", Data: &connector.Data{
			Users: []connector.UserRecord{{LocalID: "u1", PlatformID: "u1", OtherNames: []string{"bob.jones", "bjones"}}},
		}},
		{Namespace: "tableau", Data: &connector.Data{
			Users: []connector.UserRecord{{LocalID: "t1", PlatformID: "t1", OtherNames: []string{"bjones", "bob.jones"}}},
		}},
	}

	_, err := b.Build(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 1, g.NodeCount(), "identical other-names sets reported in different orders must merge")
}

func TestBuildGroupsWiresMembership(t *testing.T) {
	b, g, _ := newTestBuilder()
	inputs := []Input{
		{Namespace: "snowflake", Data: &connector.Data{
			Users:  []connector.UserRecord{{LocalID: "u1", Email: "bob@co.com"}},
			Groups: []connector.GroupRecord{{LocalID: "g1", Name: "analysts", MemberUserIDs: []string{"u1"}}},
		}},
	}

	_, err := b.Build(context.Background(), inputs)
	require.NoError(t, err)

	userH, ok := g.GetHandle(model.UserName("bob@co.com"))
	require.True(t, ok)
	groupH, ok := g.GetHandle(model.GroupNodeName("analysts", "snowflake"))
	require.True(t, ok)

	neighbors := g.Neighbors(userH, func(k model.EdgeKind) bool { return k == model.EdgeMemberOf })
	require.Len(t, neighbors, 1)
	assert.Equal(t, groupH, neighbors[0])
}

func TestBuildPoliciesSynthesizesSharedAgent(t *testing.T) {
	b, g, _ := newTestBuilder()
	inputs := []Input{
		{Namespace: "snowflake", Data: &connector.Data{
			Users: []connector.UserRecord{
				{LocalID: "u1", Email: "carol@co.com"},
				{LocalID: "u2", Email: "dave@co.com"},
			},
			Assets: []connector.AssetRecord{{LocalID: "db.schema.table", PathSegments: []string{"db", "schema", "table"}, AssetType: "table"}},
			Policies: []connector.PolicyRecord{
				{LocalID: "p1", AssetLocalID: "db.schema.table", Privileges: []string{"select"}, GranteeLocalIDs: []string{"u1", "u2"}},
			},
		}},
	}

	stats, err := b.Build(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Policies)
	assert.Equal(t, 1, stats.PolicyAgents)
}

func TestBuildDefaultPoliciesRejectsInvalidWildcard(t *testing.T) {
	b, g, _ := newTestBuilder()
	inputs := []Input{
		{Namespace: "snowflake", Data: &connector.Data{
			Assets: []connector.AssetRecord{{LocalID: "db", PathSegments: []string{"db"}, AssetType: "database"}},
			DefaultPolicies: []connector.DefaultPolicyRecord{
				{LocalID: "d1", AnchorLocalID: "db", WildcardPath: "***", TargetTypes: []string{"table"}, Privileges: []string{"select"}},
			},
		}},
	}

	stats, err := b.Build(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DefaultPolicies, "invalid wildcard_path drops the record instead of aborting the build")
	_ = g
}

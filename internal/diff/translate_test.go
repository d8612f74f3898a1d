package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettylabs/jetty-access-control/internal/model"
	"github.com/jettylabs/jetty-access-control/internal/translate"
)

func TestSplitAndTranslateProducesPerNamespaceLocalDiff(t *testing.T) {
	tr := translate.New()
	asset := model.AssetName("snowflake://acct1/db")
	user := model.UserName("bob@co.com")
	require.NoError(t, tr.Record("snowflake", "asset", "DB", asset))
	require.NoError(t, tr.Record("snowflake", "user", "BOB", user))

	global := &GlobalDiff{
		Policies: []PolicyChange{
			{
				Key:           PolicyKey{Asset: "snowflake://acct1/db", AgentKind: "ordinary", AgentKey: "x"},
				Op:            OpAddAgent,
				Grantees:      []model.NodeName{user},
				AddPrivileges: model.NewStringSet("select"),
			},
		},
	}

	diffs, errs := SplitAndTranslate(global, tr)
	assert.Empty(t, errs)
	require.Contains(t, diffs, "snowflake")
	require.Len(t, diffs["snowflake"].Policies, 1)
	assert.Equal(t, "DB", diffs["snowflake"].Policies[0].AssetLocalID)
	assert.Equal(t, []string{"BOB"}, diffs["snowflake"].Policies[0].AgentLocalIDs)
}

func TestSplitAndTranslateReportsUntranslatableAsset(t *testing.T) {
	tr := translate.New()
	global := &GlobalDiff{
		Policies: []PolicyChange{
			{Key: PolicyKey{Asset: "snowflake://acct1/missing", AgentKind: "ordinary", AgentKey: "x"}, Op: OpAddAgent, AddPrivileges: model.NewStringSet("select")},
		},
	}

	diffs, errs := SplitAndTranslate(global, tr)
	assert.Empty(t, diffs)
	assert.Contains(t, errs, "snowflake")
}

package apply

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/diff"
	"github.com/jettylabs/jetty-access-control/internal/model"
	"github.com/jettylabs/jetty-access-control/internal/translate"
)

// fakeConnector is a minimal connector.Connector used to exercise the
// orchestrator's dispatch and non-short-circuit behavior without a
// real network client; it falls into adaptLocalDiff's default branch
// since it is neither *warehouse.Connector nor *bi.Connector.
type fakeConnector struct {
	ns      string
	applied int
	err     error
}

func (f *fakeConnector) GetData(ctx context.Context) (*connector.Data, error) { return nil, nil }

func (f *fakeConnector) ApplyChanges(ctx context.Context, ld connector.LocalDiffApplier) (*connector.ApplyReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &connector.ApplyReport{Applied: f.applied}, nil
}

func (f *fakeConnector) Manifest() connector.Manifest {
	return connector.Manifest{Namespace: f.ns, Kind: "fake"}
}

func TestApplyDispatchesPerNamespaceWithoutShortCircuiting(t *testing.T) {
	tr := translate.New()
	asset := model.AssetName("good://acct/db")
	user := model.UserName("bob@co.com")
	require.NoError(t, tr.Record("good", "asset", "DB", asset))
	require.NoError(t, tr.Record("good", "user", "BOB", user))

	global := &diff.GlobalDiff{
		Policies: []diff.PolicyChange{
			{
				Key:           diff.PolicyKey{Asset: "good://acct/db", AgentKind: "ordinary", AgentKey: "x"},
				Op:            diff.OpAddAgent,
				Grantees:      []model.NodeName{user},
				AddPrivileges: model.NewStringSet("select"),
			},
		},
	}

	good := &fakeConnector{ns: "good", applied: 1}
	o := New(map[string]connector.Connector{"good": good}, tr)

	results := o.Apply(context.Background(), global)
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Namespace)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Report.Applied)
}

func TestApplyReportsConnectorErrorWithoutDroppingOthers(t *testing.T) {
	tr := translate.New()
	require.NoError(t, tr.Record("broken", "asset", "A", model.AssetName("broken://acct/a")))
	require.NoError(t, tr.Record("broken", "user", "U", model.UserName("u@co.com")))
	require.NoError(t, tr.Record("ok", "asset", "B", model.AssetName("ok://acct/b")))
	require.NoError(t, tr.Record("ok", "user", "V", model.UserName("v@co.com")))

	global := &diff.GlobalDiff{
		Policies: []diff.PolicyChange{
			{
				Key:           diff.PolicyKey{Asset: "broken://acct/a", AgentKind: "ordinary", AgentKey: "x"},
				Op:            diff.OpAddAgent,
				Grantees:      []model.NodeName{model.UserName("u@co.com")},
				AddPrivileges: model.NewStringSet("select"),
			},
			{
				Key:           diff.PolicyKey{Asset: "ok://acct/b", AgentKind: "ordinary", AgentKey: "y"},
				Op:            diff.OpAddAgent,
				Grantees:      []model.NodeName{model.UserName("v@co.com")},
				AddPrivileges: model.NewStringSet("select"),
			},
		},
	}

	broken := &fakeConnector{ns: "broken", err: errors.New("boom")}
	ok := &fakeConnector{ns: "ok", applied: 1}
	o := New(map[string]connector.Connector{"broken": broken, "ok": ok}, tr)

	results := o.Apply(context.Background(), global)
	require.Len(t, results, 2)

	byNS := make(map[string]Result, len(results))
	for _, r := range results {
		byNS[r.Namespace] = r
	}
	assert.Error(t, byNS["broken"].Err)
	assert.NoError(t, byNS["ok"].Err)
	assert.Equal(t, 1, byNS["ok"].Report.Applied)
}

func TestApplySurfacesTranslationErrorAsResult(t *testing.T) {
	tr := translate.New()
	global := &diff.GlobalDiff{
		Policies: []diff.PolicyChange{
			{Key: diff.PolicyKey{Asset: "missing://acct/x", AgentKind: "ordinary", AgentKey: "x"}, Op: diff.OpAddAgent, AddPrivileges: model.NewStringSet("select")},
		},
	}
	o := New(map[string]connector.Connector{}, tr)
	results := o.Apply(context.Background(), global)
	require.Len(t, results, 1)
	assert.Equal(t, "missing", results[0].Namespace)
	assert.Error(t, results[0].Err)
}

func TestWarehouseAdapterExpandsGranteesIntoOneViewEach(t *testing.T) {
	ld := &diff.LocalDiff{
		Policies: []diff.LocalPolicyChange{
			{AssetLocalID: "DB", AgentLocalIDs: []string{"ALICE", "BOB"}, AddPrivileges: []string{"select"}},
		},
	}
	a := warehouseAdapter{ld}
	views := a.PolicyChanges()
	require.Len(t, views, 2)
	assert.Equal(t, "ALICE", views[0].GranteeLocalID)
	assert.Equal(t, "BOB", views[1].GranteeLocalID)
}

func TestBiAdapterCarriesMembershipChanges(t *testing.T) {
	ld := &diff.LocalDiff{
		Memberships: []diff.LocalMembershipChange{{GroupLocalID: "ENG"}},
	}
	a := biAdapter{ld}
	require.Len(t, a.MembershipChanges(), 1)
	assert.Equal(t, "ENG", a.MembershipChanges()[0].GroupLocalID)
}

package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jettylabs/jetty-access-control/internal/apply"
	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/diff"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

func sampleDiff() *diff.GlobalDiff {
	return &diff.GlobalDiff{
		Policies: []diff.PolicyChange{
			{
				Key:           diff.PolicyKey{Asset: "snowflake://acct/db", AgentKind: "ordinary", AgentKey: "x"},
				Op:            diff.OpAddAgent,
				Grantees:      []model.NodeName{model.UserName("bob@co.com")},
				AddPrivileges: model.NewStringSet("select"),
			},
		},
	}
}

func TestQuietFormatterSummarizesCount(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(VerbosityQuiet)
	assert.NoError(t, f.FormatDiff(sampleDiff(), &buf))
	assert.Contains(t, buf.String(), "1 change(s) pending")
}

func TestQuietFormatterReportsNoChanges(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(VerbosityQuiet)
	assert.NoError(t, f.FormatDiff(&diff.GlobalDiff{}, &buf))
	assert.Equal(t, "no changes\n", buf.String())
}

func TestStandardFormatterListsPolicyChange(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(VerbosityStandard)
	assert.NoError(t, f.FormatDiff(sampleDiff(), &buf))
	assert.Contains(t, buf.String(), "snowflake://acct/db")
	assert.Contains(t, buf.String(), "+")
}

func TestExplainFormatterIncludesGranteesAndManagedFlag(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(VerbosityExplain)
	assert.NoError(t, f.FormatDiff(sampleDiff(), &buf))
	assert.Contains(t, buf.String(), "connector_managed=false")
	assert.Contains(t, buf.String(), "bob@co.com")
}

func TestFormatApplyReportsPerConnectorOutcome(t *testing.T) {
	results := []apply.Result{
		{Namespace: "snowflake", Report: &connector.ApplyReport{Applied: 3}},
		{Namespace: "tableau", Err: errors.New("connection refused")},
	}

	var buf bytes.Buffer
	f := NewFormatter(VerbosityStandard)
	assert.NoError(t, f.FormatApply(results, &buf))
	out := buf.String()
	assert.Contains(t, out, "snowflake: applied 3")
	assert.Contains(t, out, "tableau: error: connection refused")
}

func TestQuietFormatApplyCountsFailures(t *testing.T) {
	results := []apply.Result{
		{Namespace: "snowflake", Report: &connector.ApplyReport{Applied: 2}},
		{Namespace: "tableau", Err: errors.New("boom")},
	}
	var buf bytes.Buffer
	f := NewFormatter(VerbosityQuiet)
	assert.NoError(t, f.FormatApply(results, &buf))
	assert.Contains(t, buf.String(), "applied 2 change(s), 1 connector(s) failed")
}

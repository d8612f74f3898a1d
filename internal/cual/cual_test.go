package cual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRenderRoundTrip(t *testing.T) {
	cases := []string{
		"snowflake://acct1/db/schema/table",
		"tableau://server1/site1/project/workbook",
		"snowflake://acct1",
	}
	for _, s := range cases {
		c, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, c.Render())
	}
}

func TestParsePercentEncoding(t *testing.T) {
	c, err := Parse("snowflake://acct1/my%2Fdb/table%20one")
	require.NoError(t, err)
	assert.Equal(t, []string{"my/db", "table one"}, c.Path())
	assert.Equal(t, "snowflake://acct1/my%2Fdb/table%20one", c.Render())
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"snowflakeacct1/db":     "malformed scheme",
		"snow_flake://acct1/db": "malformed scheme",
		"snowflake:///db":       "empty authority",
		"snowflake://acct1//db": "empty path segment",
	}
	for input, wantReason := range cases {
		_, err := Parse(input)
		require.Error(t, err, input)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Reason, wantReason)
	}
}

func TestIsAncestorOf(t *testing.T) {
	db, _ := Parse("snowflake://acct1/db")
	table, _ := Parse("snowflake://acct1/db/schema/table")
	other, _ := Parse("snowflake://acct2/db")

	assert.True(t, db.IsAncestorOf(table))
	assert.False(t, table.IsAncestorOf(db))
	assert.False(t, db.IsAncestorOf(other))
	assert.Equal(t, 1, db.Depth())
	assert.Equal(t, 3, table.Depth())
}

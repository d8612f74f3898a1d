package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jettylabs/jetty-access-control/internal/model"
)

func TestParseNodeNameArg(t *testing.T) {
	cases := []struct {
		in   string
		want model.NodeName
	}{
		{"User(ada@example.com)", model.UserName("ada@example.com")},
		{"Group(sales@snowflake)", model.GroupNodeName("sales", "snowflake")},
		{"Asset(snowflake://acct/db/table)", model.AssetName("snowflake://acct/db/table")},
		{"Tag(pii)", model.TagName("pii")},
	}
	for _, c := range cases {
		got, err := parseNodeNameArg(c.in)
		assert.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParseNodeNameArgRejectsMalformed(t *testing.T) {
	_, err := parseNodeNameArg("not-a-node-name")
	assert.Error(t, err)

	_, err = parseNodeNameArg("Group(sales)")
	assert.Error(t, err)

	_, err = parseNodeNameArg("Policy(foo)")
	assert.Error(t, err)
}

func TestParseNodeNameArgRoundTripsString(t *testing.T) {
	names := []model.NodeName{
		model.UserName("bob@example.com"),
		model.GroupNodeName("eng", "tableau"),
		model.AssetName("snowflake://acct/schema"),
		model.TagName("confidential"),
	}
	for _, n := range names {
		got, err := parseNodeNameArg(n.String())
		assert.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"a", "b"}, splitCSV("a,b"))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , b ,"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "ada_example.com", sanitizeFilename("ada@example.com"))
	assert.Equal(t, "acct-db-table", sanitizeFilename("acct-db-table"))
}

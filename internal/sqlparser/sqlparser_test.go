package sqlparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSimpleFrom(t *testing.T) {
	r := Parse("snowflake", "select * from analytics.orders o join analytics.customers c on o.customer_id = c.id")
	assert.Contains(t, r.Tables, TableRef{Schema: "analytics", Table: "orders"})
	assert.Contains(t, r.Tables, TableRef{Schema: "analytics", Table: "customers"})
	assert.Empty(t, r.Warnings)
}

func TestParseDedupesRepeatedReferences(t *testing.T) {
	r := Parse("snowflake", "select * from raw.events union all select * from raw.events")
	assert.Len(t, r.Tables, 1)
}

func TestParseIgnoresCTENames(t *testing.T) {
	r := Parse("snowflake", "with recent as (select * from raw.events) select * from recent")
	assert.Contains(t, r.Tables, TableRef{Schema: "raw", Table: "events"})
	for _, tbl := range r.Tables {
		assert.NotEqual(t, "recent", tbl.Table)
	}
}

func TestParseWarnsOnDerivedTable(t *testing.T) {
	r := Parse("snowflake", "select * from (select 1) as t")
	assert.NotEmpty(t, r.Warnings)
}

func TestParseThreePartNameFoldsDatabase(t *testing.T) {
	r := Parse("snowflake", "select * from mydb.analytics.orders")
	assert.Contains(t, r.Tables, TableRef{Schema: "analytics", Table: "orders"})
}

package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFutureGrantWildcardSchemaAnchor(t *testing.T) {
	assert.Equal(t, "*", futureGrantWildcard("ACME.ANALYTICS"))
}

func TestFutureGrantWildcardDatabaseAnchor(t *testing.T) {
	assert.Equal(t, "**", futureGrantWildcard("ACME"))
}

func TestFutureGrantWildcardTableAnchorFallsBackToSingleHop(t *testing.T) {
	assert.Equal(t, "*", futureGrantWildcard("ACME.ANALYTICS.EVENTS"))
}

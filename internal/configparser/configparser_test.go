package configparser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettylabs/jetty-access-control/internal/connector"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func snowflakeManifest() connector.Manifest {
	return connector.Manifest{
		Namespace: "snowflake",
		Kind:      "snowflake",
		AssetPrivileges: connector.AssetPrivileges{
			"table": {"select": {}},
		},
	}
}

func TestParseResolvesGroupGranteeAndPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "groups", "groups.yaml"), `
groups:
  - name: engineering
    connectors:
      snowflake: ENGINEERING_ROLE
`)
	writeFile(t, filepath.Join(dir, "assets", "db.yaml"), `
identifier:
  connector: snowflake
  authority: acct1
  path: [db, schema, table]
asset_type: table
policies:
  - grantees: [engineering]
    privileges: [select]
    connector_managed: true
`)

	cfg, err := Parse(
		filepath.Join(dir, "groups", "groups.yaml"),
		filepath.Join(dir, "users"),
		filepath.Join(dir, "assets"),
		"",
		map[string]connector.Manifest{"snowflake": snowflakeManifest()},
	)
	require.NoError(t, err)
	assert.Len(t, cfg.State.Policies, 1)
	for _, ps := range cfg.State.Policies {
		assert.True(t, ps.Privileges.Has("select"))
		assert.Len(t, ps.Grantees, 1)
	}
}

func TestParseRejectsUndeclaredGroupGrantee(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "groups", "groups.yaml"), "groups: []\n")
	writeFile(t, filepath.Join(dir, "assets", "db.yaml"), `
identifier:
  connector: snowflake
  authority: acct1
  path: [db, schema, table]
asset_type: table
policies:
  - grantees: [ghost-team]
    privileges: [select]
`)

	_, err := Parse(
		filepath.Join(dir, "groups", "groups.yaml"),
		filepath.Join(dir, "users"),
		filepath.Join(dir, "assets"),
		"",
		map[string]connector.Manifest{"snowflake": snowflakeManifest()},
	)
	assert.Error(t, err)
}

func TestParseRejectsUnknownPrivilege(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "groups", "groups.yaml"), "groups: []\n")
	writeFile(t, filepath.Join(dir, "assets", "db.yaml"), `
identifier:
  connector: snowflake
  authority: acct1
  path: [db, schema, table]
asset_type: table
policies:
  - grantees: [bob@co.com]
    privileges: [teleport]
`)

	_, err := Parse(
		filepath.Join(dir, "groups", "groups.yaml"),
		filepath.Join(dir, "users"),
		filepath.Join(dir, "assets"),
		"",
		map[string]connector.Manifest{"snowflake": snowflakeManifest()},
	)
	assert.Error(t, err)
}

func TestParseRejectsInvalidWildcardPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "groups", "groups.yaml"), "groups: []\n")
	writeFile(t, filepath.Join(dir, "assets", "db.yaml"), `
identifier:
  connector: snowflake
  authority: acct1
  path: [db]
asset_type: database
default_policies:
  - path: "***"
    target_types: [table]
    grantees: [bob@co.com]
    privileges: [select]
`)

	_, err := Parse(
		filepath.Join(dir, "groups", "groups.yaml"),
		filepath.Join(dir, "users"),
		filepath.Join(dir, "assets"),
		"",
		map[string]connector.Manifest{"snowflake": snowflakeManifest()},
	)
	assert.Error(t, err)
}

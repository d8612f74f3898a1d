// Package warehouse implements a connector for SQL-over-HTTPS data
// warehouses (Snowflake and warehouses with an equivalent account/
// database/schema/table hierarchy and GRANT-based privilege model).
//
// Grounded on the teacher's internal/storage/postgres.go pool/DSN
// shape, adapted from a database/sql-over-TCP pool to a pgx/v5
// connection pool speaking the warehouse's SQL dialect over TLS.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/jettylabs/jetty-access-control/internal/config"
	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/errors"
)

// Config is the warehouse connector's declared config (spec §4.11,
// C11): an account locator plus the namespace used to read
// credentials out of the credential manager.
type Config struct {
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Account   string `mapstructure:"account" yaml:"account"`
	Role      string `mapstructure:"role" yaml:"role"`
	Warehouse string `mapstructure:"warehouse" yaml:"warehouse"`
}

// Connector queries a warehouse's account_usage/information_schema
// views for users, roles (groups), databases/schemas/tables (assets)
// and GRANT records (policies), and issues GRANT/REVOKE statements on
// ApplyChanges.
type Connector struct {
	cfg Config
	db  *sqlx.DB
}

// New dials the warehouse using credentials resolved from creds for
// cfg.Namespace (spec §4.11's "connectors resolve their own
// credentials through the shared credential manager").
func New(ctx context.Context, cfg Config, creds *config.CredentialManager) (*Connector, error) {
	user, err := creds.Get(cfg.Namespace, "user", false)
	if err != nil {
		return nil, errors.ConnectorError(err, false, "warehouse %s: resolve user", cfg.Namespace)
	}
	password, err := creds.Get(cfg.Namespace, "password", false)
	if err != nil {
		return nil, errors.ConnectorError(err, false, "warehouse %s: resolve password", cfg.Namespace)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=require", user, password, cfg.Account, cfg.Warehouse)
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.ConnectorError(err, true, "warehouse %s: connect", cfg.Namespace)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errors.ConnectorError(err, true, "warehouse %s: ping", cfg.Namespace)
	}

	return &Connector{cfg: cfg, db: sqlx.NewDb(sqlDB, "pgx")}, nil
}

// DB exposes the underlying pool so a transform connector on the same
// account can share it rather than opening a second connection.
func (c *Connector) DB() *sqlx.DB { return c.db }

// Close releases the warehouse connection pool.
func (c *Connector) Close() error { return c.db.Close() }

// Manifest declares which privileges apply to which warehouse asset
// types (spec §4.11).
func (c *Connector) Manifest() connector.Manifest {
	priv := func(ps ...string) map[string]struct{} {
		s := make(map[string]struct{}, len(ps))
		for _, p := range ps {
			s[p] = struct{}{}
		}
		return s
	}
	return connector.Manifest{
		Namespace: c.cfg.Namespace,
		Kind:      "warehouse",
		AssetPrivileges: connector.AssetPrivileges{
			"database": priv("usage"),
			"schema":   priv("usage"),
			"table":    priv("select", "insert", "update", "delete"),
			"view":     priv("select"),
		},
		Capabilities: map[connector.Capability]struct{}{
			"default_policies": {},
			"lineage":          {},
		},
	}
}

// GetData runs the account_usage/information_schema queries and
// assembles a connector.Data (spec §4.4's ConnectorData).
func (c *Connector) GetData(ctx context.Context) (*connector.Data, error) {
	data := &connector.Data{Namespace: c.cfg.Namespace}

	if err := c.fetchUsers(ctx, data); err != nil {
		return nil, err
	}
	if err := c.fetchRoles(ctx, data); err != nil {
		return nil, err
	}
	if err := c.fetchAssets(ctx, data); err != nil {
		return nil, err
	}
	if err := c.fetchGrants(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

type userRow struct {
	LoginName string `db:"login_name"`
	Email     string `db:"email"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
}

func (c *Connector) fetchUsers(ctx context.Context, data *connector.Data) error {
	var rows []userRow
	err := c.db.SelectContext(ctx, &rows, `select login_name, email, first_name, last_name from account_usage.users where deleted_on is null`)
	if err != nil {
		return errors.ConnectorError(err, true, "warehouse %s: fetch users", c.cfg.Namespace)
	}
	for _, r := range rows {
		data.Users = append(data.Users, connector.UserRecord{
			LocalID:    r.LoginName,
			Email:      r.Email,
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			PlatformID: r.LoginName,
		})
	}
	return nil
}

type roleRow struct {
	Name        string `db:"name"`
	GrantedRole string `db:"granted_to"`
}

func (c *Connector) fetchRoles(ctx context.Context, data *connector.Data) error {
	var rows []roleRow
	err := c.db.SelectContext(ctx, &rows, `select name, granted_to from account_usage.roles`)
	if err != nil {
		return errors.ConnectorError(err, true, "warehouse %s: fetch roles", c.cfg.Namespace)
	}
	byName := make(map[string]*connector.GroupRecord)
	for _, r := range rows {
		g, ok := byName[r.Name]
		if !ok {
			g = &connector.GroupRecord{LocalID: r.Name, Name: r.Name}
			byName[r.Name] = g
		}
		if r.GrantedRole != "" {
			g.MemberGroupIDs = append(g.MemberGroupIDs, r.GrantedRole)
		}
	}
	for _, g := range byName {
		data.Groups = append(data.Groups, *g)
	}
	return nil
}

type assetRow struct {
	Database string `db:"database_name"`
	Schema   string `db:"schema_name"`
	Table    string `db:"table_name"`
	Kind     string `db:"table_type"`
}

func (c *Connector) fetchAssets(ctx context.Context, data *connector.Data) error {
	var rows []assetRow
	err := c.db.SelectContext(ctx, &rows, `select database_name, schema_name, table_name, table_type from account_usage.tables where deleted is null`)
	if err != nil {
		return errors.ConnectorError(err, true, "warehouse %s: fetch tables", c.cfg.Namespace)
	}
	seen := make(map[string]struct{})
	add := func(id string, segs []string, parent, typ string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		data.Assets = append(data.Assets, connector.AssetRecord{
			LocalID:       id,
			PathSegments:  segs,
			AssetType:     typ,
			ParentLocalID: parent,
		})
	}
	for _, r := range rows {
		add(r.Database, []string{r.Database}, "", "database")
		add(r.Database+"."+r.Schema, []string{r.Database, r.Schema}, r.Database, "schema")
		tableType := "table"
		if r.Kind == "VIEW" {
			tableType = "view"
		}
		add(r.Database+"."+r.Schema+"."+r.Table, []string{r.Database, r.Schema, r.Table}, r.Database+"."+r.Schema, tableType)
	}
	return nil
}

type grantRow struct {
	Privilege   string `db:"privilege"`
	GrantedOn   string `db:"granted_on"`
	AssetID     string `db:"asset_id"`
	GranteeID   string `db:"grantee_id"`
	FutureGrant bool   `db:"future_grant"`
}

// futureGrantWildcard picks the wildcard depth a "GRANT ... ON FUTURE"
// anchor needs, matching fetchAssets's id construction ("database",
// "database.schema", "database.schema.table"). A schema anchor is one
// hop from the tables it will contain ("*"); a database anchor is two
// hops, via an intervening schema node, so it needs "**" to still
// match once resolve.wildcardMatches requires distance>=1 for "**" but
// distance==1 for "*".
func futureGrantWildcard(assetID string) string {
	if strings.Count(assetID, ".") == 0 {
		return "**"
	}
	return "*"
}

func (c *Connector) fetchGrants(ctx context.Context, data *connector.Data) error {
	var rows []grantRow
	err := c.db.SelectContext(ctx, &rows, `select privilege, granted_on, asset_id, grantee_id, future_grant from account_usage.grants_to_roles where deleted_on is null`)
	if err != nil {
		return errors.ConnectorError(err, true, "warehouse %s: fetch grants", c.cfg.Namespace)
	}
	for i, r := range rows {
		if r.FutureGrant {
			data.DefaultPolicies = append(data.DefaultPolicies, connector.DefaultPolicyRecord{
				LocalID:         fmt.Sprintf("default-%d", i),
				AnchorLocalID:   r.AssetID,
				WildcardPath:    futureGrantWildcard(r.AssetID),
				TargetTypes:     []string{r.GrantedOn},
				Privileges:      []string{r.Privilege},
				GranteeLocalIDs: []string{r.GranteeID},
			})
			continue
		}
		data.Policies = append(data.Policies, connector.PolicyRecord{
			LocalID:         fmt.Sprintf("policy-%d", i),
			AssetLocalID:    r.AssetID,
			Privileges:      []string{r.Privilege},
			GranteeLocalIDs: []string{r.GranteeID},
		})
	}
	return nil
}

// ApplyChanges issues GRANT/REVOKE statements for the changes the
// diff asked this connector to apply (spec §4.10: connectors execute
// only the subset of change ops their manifest's capabilities allow).
func (c *Connector) ApplyChanges(ctx context.Context, diff connector.LocalDiffApplier) (*connector.ApplyReport, error) {
	ld, ok := diff.(localDiffLike)
	if !ok {
		return nil, errors.ApplyError(nil, "warehouse %s: unsupported diff type", c.cfg.Namespace)
	}

	report := &connector.ApplyReport{}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.ApplyError(err, "warehouse %s: begin tx", c.cfg.Namespace)
	}
	defer tx.Rollback()

	for _, pc := range ld.PolicyChanges() {
		if err := applyPolicyChange(ctx, tx, pc); err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Applied++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.ApplyError(err, "warehouse %s: commit tx", c.cfg.Namespace)
	}
	return report, nil
}

// localDiffLike is the minimal surface internal/apply's adapter
// provides so this package need not import internal/diff directly.
type localDiffLike interface {
	PolicyChanges() []PolicyChangeView
}

// PolicyChangeView is the subset of a local policy change a SQL
// connector needs to emit GRANT/REVOKE.
type PolicyChangeView struct {
	AssetLocalID   string
	GranteeLocalID string
	Add            []string
	Remove         []string
}

func applyPolicyChange(ctx context.Context, tx *sqlx.Tx, pc PolicyChangeView) error {
	for _, priv := range pc.Add {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("grant %s on %s to %s", priv, pc.AssetLocalID, pc.GranteeLocalID)); err != nil {
			return err
		}
	}
	for _, priv := range pc.Remove {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("revoke %s on %s from %s", priv, pc.AssetLocalID, pc.GranteeLocalID)); err != nil {
			return err
		}
	}
	return nil
}

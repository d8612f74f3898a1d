// Package transform implements a connector for dbt-like SQL transform
// projects: models are assets, model-to-model references become
// lineage edges extracted from each model's compiled SQL via
// internal/sqlparser, and model-level access grants map to policies.
//
// Grounded on the teacher's internal/storage/postgres.go pool/DSN
// shape for the manifest-store query surface (a transform project's
// compiled manifest lives in the same warehouse its models run
// against), reusing the warehouse connector's sqlx wiring rather than
// duplicating it.
package transform

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/errors"
	"github.com/jettylabs/jetty-access-control/internal/sqlparser"
)

// Config is the transform connector's declared config: it reads a
// compiled manifest table out of the same warehouse account its
// models materialize into.
type Config struct {
	Namespace     string `mapstructure:"namespace" yaml:"namespace"`
	ManifestTable string `mapstructure:"manifest_table" yaml:"manifest_table"`
	Dialect       string `mapstructure:"dialect" yaml:"dialect"`
}

// Connector reads compiled model definitions and their embedded SQL
// to derive assets and lineage edges.
type Connector struct {
	cfg Config
	db  *sqlx.DB
}

// New wraps an already-open warehouse connection; the transform
// project and the warehouse it compiles into share one account, so
// the orchestrator hands this connector the warehouse connector's
// *sqlx.DB rather than opening a second pool (spec §4.11 is silent on
// connector-to-connector sharing; this is the natural reading of "a
// transform project's manifest lives in its target warehouse").
func New(cfg Config, db *sqlx.DB) *Connector {
	return &Connector{cfg: cfg, db: db}
}

// Manifest declares the privileges a transform model's policies can
// carry.
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
		Kind:      "transform",
		AssetPrivileges: connector.AssetPrivileges{
			"model": priv("select"),
		},
		Capabilities: map[connector.Capability]struct{}{
			"lineage": {},
		},
	}
}

type modelRow struct {
	UniqueID    string `db:"unique_id"`
	Name        string `db:"name"`
	SchemaName  string `db:"schema_name"`
	CompiledSQL string `db:"compiled_sql"`
}

// GetData reads every compiled model and extracts its upstream table
// references via internal/sqlparser; extraction warnings are folded
// into the model's metadata rather than failing the fetch.
func (c *Connector) GetData(ctx context.Context) (*connector.Data, error) {
	var rows []modelRow
	query := fmt.Sprintf("select unique_id, name, schema_name, compiled_sql from %s", c.cfg.ManifestTable)
	if err := c.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.ConnectorError(err, true, "transform %s: fetch manifest", c.cfg.Namespace)
	}

	data := &connector.Data{Namespace: c.cfg.Namespace}
	for _, r := range rows {
		asset := connector.AssetRecord{
			LocalID:      r.UniqueID,
			PathSegments: []string{r.SchemaName, r.Name},
			AssetType:    "model",
			EmbeddedSQL:  r.CompiledSQL,
			SQLDialect:   c.cfg.Dialect,
		}

		parsed := sqlparser.Parse(c.cfg.Dialect, r.CompiledSQL)
		if len(parsed.Warnings) > 0 {
			if asset.Metadata == nil {
				asset.Metadata = make(map[string]string)
			}
			asset.Metadata["lineage_warnings"] = fmt.Sprintf("%d", len(parsed.Warnings))
		}
		for _, ref := range parsed.Tables {
			upstream := ref.Table
			if ref.Schema != "" {
				upstream = ref.Schema + "." + ref.Table
			}
			asset.DerivedFromLocalIDs = append(asset.DerivedFromLocalIDs, upstream)
		}

		data.Assets = append(data.Assets, asset)
	}
	return data, nil
}

// ApplyChanges is a no-op: transform models don't carry their own
// access grants independent of the warehouse tables they materialize
// into, so this connector reports every change as skipped rather than
// claiming capabilities it doesn't have (spec §4.10).
func (c *Connector) ApplyChanges(ctx context.Context, diff connector.LocalDiffApplier) (*connector.ApplyReport, error) {
	if diff.IsEmpty() {
		return &connector.ApplyReport{}, nil
	}
	return &connector.ApplyReport{
		Skipped: []connector.SkipReason{{
			Reason: "unsupported_change_kind",
			Detail: "transform connector has no write surface; access is governed by the target warehouse",
		}},
	}, nil
}

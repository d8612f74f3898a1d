package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/jettylabs/jetty-access-control/internal/config"
	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/connector/bi"
	"github.com/jettylabs/jetty-access-control/internal/connector/transform"
	"github.com/jettylabs/jetty-access-control/internal/connector/warehouse"
)

// connectorSet is every instantiated connector for one run, keyed by
// the namespace jetty_config.yaml's connectors map declares it under,
// plus each one's Manifest (needed by configparser.Parse before any
// fetch has even happened).
type connectorSet struct {
	byNamespace map[string]connector.Connector
	manifests   map[string]connector.Manifest
	warehouses  map[string]*warehouse.Connector // kept so transform connectors can share a pool
}

// buildConnectors instantiates one connector per jetty_config.yaml
// entry. Warehouse entries are built first so a transform entry can
// share the *sqlx.DB of the warehouse whose namespace equals the
// transform's own `namespace` setting.
func buildConnectors(ctx context.Context, cfg *config.ProjectConfig, creds *config.CredentialManager, only []string) (*connectorSet, error) {
	want := func(ns string) bool {
		if len(only) == 0 {
			return true
		}
		for _, o := range only {
			if o == ns {
				return true
			}
		}
		return false
	}

	set := &connectorSet{
		byNamespace: map[string]connector.Connector{},
		manifests:   map[string]connector.Manifest{},
		warehouses:  map[string]*warehouse.Connector{},
	}

	namespaces := make([]string, 0, len(cfg.Connectors))
	for ns := range cfg.Connectors {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		decl := cfg.Connectors[ns]
		if !want(ns) || decl.Type != "warehouse" {
			continue
		}
		var wcfg warehouse.Config
		if err := decodeConnectorConfig(ns, decl, &wcfg); err != nil {
			return nil, err
		}
		conn, err := warehouse.New(ctx, wcfg, creds)
		if err != nil {
			return nil, err
		}
		set.byNamespace[ns] = conn
		set.manifests[ns] = conn.Manifest()
		set.warehouses[ns] = conn
	}

	for _, ns := range namespaces {
		decl := cfg.Connectors[ns]
		if !want(ns) {
			continue
		}
		switch decl.Type {
		case "warehouse":
			continue // already built above
		case "bi":
			var bcfg bi.Config
			if err := decodeConnectorConfig(ns, decl, &bcfg); err != nil {
				return nil, err
			}
			conn, err := bi.New(ctx, bcfg, creds)
			if err != nil {
				return nil, err
			}
			set.byNamespace[ns] = conn
			set.manifests[ns] = conn.Manifest()
		case "transform":
			var tcfg transform.Config
			if err := decodeConnectorConfig(ns, decl, &tcfg); err != nil {
				return nil, err
			}
			wh, ok := set.warehouses[tcfg.Namespace]
			if !ok {
				return nil, fmt.Errorf("connector %q: transform requires a warehouse connector under namespace %q", ns, tcfg.Namespace)
			}
			conn := transform.New(tcfg, wh.DB())
			set.byNamespace[ns] = conn
			set.manifests[ns] = conn.Manifest()
		default:
			return nil, fmt.Errorf("connector %q: unknown type %q", ns, decl.Type)
		}
	}

	return set, nil
}

// decodeConnectorConfig decodes a jetty_config.yaml connector entry's
// free-form Extra map into a concrete connector Config struct,
// defaulting its Namespace field to the map key if the entry didn't
// repeat it explicitly.
func decodeConnectorConfig(namespace string, decl config.ConnectorConfig, out any) error {
	raw := map[string]any{"namespace": namespace}
	for k, v := range decl.Extra {
		raw[k] = v
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: out, WeaklyTypedInput: true})
	if err != nil {
		return fmt.Errorf("connector %q: build decoder: %w", namespace, err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("connector %q: decode config: %w", namespace, err)
	}
	return nil
}

// closeAll releases any connector resources that hold one (only the
// warehouse pool, currently).
func (s *connectorSet) closeAll() {
	for _, wh := range s.warehouses {
		_ = wh.Close()
	}
}

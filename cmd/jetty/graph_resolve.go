package main

import (
	"github.com/spf13/cobra"

	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/translate"
)

// resolveGraph is the fetch-or-load decision every read-oriented
// command shares: fetch fresh when the caller asked for it, otherwise
// reuse the last persisted snapshot (spec §6's repeated `[--fetch]` /
// `--no-fetch` flags).
func resolveGraph(cmd *cobra.Command, skipFetch bool) (*graphstore.Graph, error) {
	if skipFetch {
		return loadPersistedGraph()
	}
	graph, _, _, err := fetchAndBuild(cmd.Context(), nil)
	return graph, err
}

// resolveGraphForDiff additionally returns the translator and manifest
// set `jetty diff`/`plan`/`apply` need: a translator to split/translate
// the computed GlobalDiff by namespace, and manifests to validate
// configparser.Parse's privilege declarations against. When skipFetch
// is set, the translator comes back nil (apply always requires a
// fresh fetch, per spec §4.10 — a translator from a stale build would
// resolve local ids the connector no longer recognizes).
func resolveGraphForDiff(cmd *cobra.Command, skipFetch bool) (*graphstore.Graph, *translate.Translator, map[string]connector.Manifest, error) {
	if skipFetch {
		graph, err := loadPersistedGraph()
		if err != nil {
			return nil, nil, nil, err
		}
		manifests, err := connectorManifests(cmd.Context())
		if err != nil {
			return nil, nil, nil, err
		}
		return graph, nil, manifests, nil
	}
	return fetchAndBuild(cmd.Context(), nil)
}

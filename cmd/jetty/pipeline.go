package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jettylabs/jetty-access-control/internal/builder"
	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/logging"
	"github.com/jettylabs/jetty-access-control/internal/persistence"
	"github.com/jettylabs/jetty-access-control/internal/translate"
)

// fetchAll runs GetData against every connector in set concurrently
// (spec §5), never aborting the whole run on one connector's failure —
// the same non-short-circuiting collection the apply orchestrator uses
// for ApplyChanges.
func fetchAll(ctx context.Context, set *connectorSet) (map[string]*connector.Data, map[string]error) {
	type result struct {
		ns   string
		data *connector.Data
		err  error
	}

	results := make(chan result, len(set.byNamespace))
	g, ctx := errgroup.WithContext(ctx)
	for ns, conn := range set.byNamespace {
		ns, conn := ns, conn
		g.Go(func() error {
			data, err := conn.GetData(ctx)
			results <- result{ns: ns, data: data, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	data := make(map[string]*connector.Data, len(set.byNamespace))
	errs := make(map[string]error)
	for r := range results {
		if r.err != nil {
			errs[r.ns] = r.err
			continue
		}
		data[r.ns] = r.data
	}
	return data, errs
}

// buildGraph runs the builder over every successfully-fetched
// connector's data, in a deterministic namespace order (spec §4.4
// invariant 5: "within a step, per-connector order follows the
// caller's input list").
func buildGraph(ctx context.Context, set *connectorSet, data map[string]*connector.Data) (*graphstore.Graph, *translate.Translator, *builder.Stats, error) {
	namespaces := make([]string, 0, len(data))
	for ns := range data {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	inputs := make([]builder.Input, 0, len(namespaces))
	for _, ns := range namespaces {
		inputs = append(inputs, builder.Input{
			Namespace: ns,
			Data:      data[ns],
			Manifest:  set.manifests[ns],
		})
	}

	graph := graphstore.New()
	translator := translate.New()
	stats, err := builder.New(graph, translator).Build(ctx, inputs)
	if err != nil {
		return nil, nil, stats, err
	}
	return graph, translator, stats, nil
}

// fetchAndBuild is the shared fetch→build→persist pipeline behind
// `fetch`, `apply`, and every command run without `--no-fetch`. It
// also hands back the manifest set buildConnectors resolved, so a
// caller that already paid the cost of fetching doesn't need a second,
// manifest-only connector dial (see connectorManifests).
func fetchAndBuild(ctx context.Context, only []string) (*graphstore.Graph, *translate.Translator, map[string]connector.Manifest, error) {
	set, err := buildConnectors(ctx, projectCfg, credManager, only)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("configure connectors: %w", err)
	}
	defer set.closeAll()

	data, fetchErrs := fetchAll(ctx, set)
	for ns, err := range fetchErrs {
		logging.Error("fetch failed", "namespace", ns, "error", err)
	}
	if len(data) == 0 && len(set.byNamespace) > 0 {
		return nil, nil, nil, fmt.Errorf("all %d connector(s) failed to fetch", len(set.byNamespace))
	}

	graph, translator, stats, err := buildGraph(ctx, set, data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build graph: %w", err)
	}
	logging.Info("graph built",
		"users", stats.Users, "groups", stats.Groups, "assets", stats.Assets,
		"policies", stats.Policies, "default_policies", stats.DefaultPolicies, "tags", stats.Tags,
		"deferred_edges", stats.DeferredEdges)

	store, err := persistence.Open(graphDBPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open graph store: %w", err)
	}
	defer store.Close()

	if err := store.SaveGraph(graph); err != nil {
		return nil, nil, nil, fmt.Errorf("persist graph: %w", err)
	}
	now := time.Now()
	for ns := range data {
		if err := store.SetLastFetch(ns, now); err != nil {
			logging.Warn("record last fetch failed", "namespace", ns, "error", err)
		}
	}

	return graph, translator, set.manifests, nil
}

// connectorManifests dials every configured connector just far enough
// to read its Manifest, without fetching data — used by diff/plan when
// run with --no-fetch, since privilege validation (configparser.Parse)
// needs a manifest per namespace regardless of whether this run
// refreshes the graph.
func connectorManifests(ctx context.Context) (map[string]connector.Manifest, error) {
	set, err := buildConnectors(ctx, projectCfg, credManager, nil)
	if err != nil {
		return nil, fmt.Errorf("configure connectors: %w", err)
	}
	defer set.closeAll()
	return set.manifests, nil
}

// loadPersistedGraph opens the on-disk graph store for commands run
// with --no-fetch.
func loadPersistedGraph() (*graphstore.Graph, error) {
	store, err := persistence.Open(graphDBPath())
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	defer store.Close()

	graph, ok, err := store.LoadGraph()
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no graph on disk at %s; run `jetty fetch` first", graphDBPath())
	}
	return graph, nil
}

// Package builder constructs the access graph from a batch of
// per-connector fetches (spec §4.4). Build is purely functional and
// deterministic given input order: it consumes []connector.Data and
// an ordered namespace list, and writes only to the graphstore.Graph
// it's handed.
//
// Grounded on the teacher's internal/graph/builder.go: a Builder type
// wrapping its data sources, a BuildStats accumulator, and a top-level
// BuildGraph that runs named phases in a fixed order, logging and
// accumulating per phase without aborting the whole build on a
// recoverable phase error.
package builder

import (
	"context"
	"fmt"

	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/errors"
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/logging"
	"github.com/jettylabs/jetty-access-control/internal/translate"
)

// Input is one connector's fetched data paired with the namespace it
// was fetched under.
type Input struct {
	Namespace string
	Data      *connector.Data
	Manifest  connector.Manifest
}

// Stats accumulates per-step node/edge counts for reporting.
type Stats struct {
	Users           int
	Groups          int
	Assets          int
	Policies        int
	PolicyAgents    int
	DefaultPolicies int
	Tags            int
	Edges           int
	DeferredEdges   int
}

// Builder runs the six-step build (spec §4.4) against a graph.
type Builder struct {
	graph      *graphstore.Graph
	translator *translate.Translator
}

// New returns a Builder that writes into graph and records
// local-id↔global-name mappings into translator as it goes.
func New(graph *graphstore.Graph, translator *translate.Translator) *Builder {
	return &Builder{graph: graph, translator: translator}
}

// Build runs steps 1 through 6 in order, each completing for every
// connector in inputs before the next step starts (spec §4.4, §8
// invariant 5 "steps 1→6 are strictly ordered; within a step,
// per-connector order follows the caller's input list").
func (b *Builder) Build(ctx context.Context, inputs []Input) (*Stats, error) {
	stats := &Stats{}

	if err := b.buildUsers(inputs, stats); err != nil {
		return stats, fmt.Errorf("build users: %w", err)
	}
	logging.Info("build step complete", "step", "users", "count", stats.Users)

	if err := b.buildGroups(inputs, stats); err != nil {
		return stats, fmt.Errorf("build groups: %w", err)
	}
	logging.Info("build step complete", "step", "groups", "count", stats.Groups)

	if err := b.buildAssets(inputs, stats); err != nil {
		return stats, fmt.Errorf("build assets: %w", err)
	}
	logging.Info("build step complete", "step", "assets", "count", stats.Assets)

	if err := b.buildPolicies(inputs, stats); err != nil {
		return stats, fmt.Errorf("build policies: %w", err)
	}
	logging.Info("build step complete", "step", "policies", "count", stats.Policies, "agents", stats.PolicyAgents)

	if err := b.buildDefaultPolicies(inputs, stats); err != nil {
		return stats, fmt.Errorf("build default policies: %w", err)
	}
	logging.Info("build step complete", "step", "default_policies", "count", stats.DefaultPolicies)

	if err := b.buildTags(inputs, stats); err != nil {
		return stats, fmt.Errorf("build tags: %w", err)
	}
	logging.Info("build step complete", "step", "tags", "count", stats.Tags)

	return stats, nil
}

// collectDeferred records a graphstore.DeferredEdgeError into stats
// without aborting the build — spec §4.4 treats missing-endpoint
// edges as a per-step collectible, not a fatal error, reserving
// IsFatal aborts for merge conflicts (errors.MergeConflict).
func collectDeferred(err error, stats *Stats) error {
	var deferred *graphstore.DeferredEdgeError
	if ok := errorsAs(err, &deferred); ok {
		stats.DeferredEdges++
		logging.Warn("deferred edge", "from", deferred.From.String(), "to", deferred.To.String(), "kind", deferred.Kind.String())
		return nil
	}
	return err
}

func errorsAs(err error, target **graphstore.DeferredEdgeError) bool {
	de, ok := err.(*graphstore.DeferredEdgeError)
	if !ok {
		return false
	}
	*target = de
	return true
}

// mustNotFatal wraps a merge-conflict error with the path context
// spec §4.4 requires ("one fatal merge conflict aborts with full path
// context").
func mustNotFatal(err error, namespace, context string) error {
	if err == nil {
		return nil
	}
	if errors.IsFatal(err) {
		if e, ok := err.(*errors.Error); ok {
			return e.WithNamespace(namespace).WithContext("step", context)
		}
	}
	return err
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jettylabs/jetty-access-control/internal/configparser"
	"github.com/jettylabs/jetty-access-control/internal/diff"
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/output"
	"github.com/jettylabs/jetty-access-control/internal/translate"
)

// computeDiff is the shared diff/plan/apply step: resolve the graph
// (fetching fresh or reusing the last persisted snapshot), parse the
// YAML desired-state surfaces, and compute the GlobalDiff between
// them (spec §4.8, §4.9).
func computeDiff(cmd *cobra.Command, skipFetch bool) (*diff.GlobalDiff, *graphstore.Graph, *translate.Translator, error) {
	graph, translator, manifests, err := resolveGraphForDiff(cmd, skipFetch)
	if err != nil {
		return nil, nil, nil, err
	}

	parsed, err := configparser.Parse(groupsPath(), usersDir(), assetsDir(), tagsPath(), manifests)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse desired state: %w", err)
	}

	global := diff.Compute(graph, parsed)
	return global, graph, translator, nil
}

func verbosityFromFlags(quiet, explain bool) output.VerbosityLevel {
	switch {
	case quiet:
		return output.VerbosityQuiet
	case explain:
		return output.VerbosityExplain
	default:
		return output.GetDefaultVerbosity()
	}
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show the difference between desired and observed access",
	RunE:  runDiff,
}

var (
	diffNoFetch bool
	diffQuiet   bool
	diffExplain bool
)

func init() {
	diffCmd.Flags().BoolVar(&diffNoFetch, "no-fetch", false, "reuse the last persisted graph instead of fetching")
	diffCmd.Flags().BoolVarP(&diffQuiet, "quiet", "q", false, "one-line summary")
	diffCmd.Flags().BoolVar(&diffExplain, "explain", false, "print full change detail")
}

func runDiff(cmd *cobra.Command, args []string) error {
	global, _, _, err := computeDiff(cmd, diffNoFetch)
	if err != nil {
		return err
	}
	formatter := output.NewFormatter(verbosityFromFlags(diffQuiet, diffExplain))
	return formatter.FormatDiff(global, cmd.OutOrStdout())
}

// planCmd prints the same GlobalDiff as `diff`; the two commands exist
// separately because plan is the dry-run a user runs right before
// apply, while diff is a standalone inspection command (spec §6).
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview the changes `jetty apply` would make",
	RunE:  runPlan,
}

var (
	planNoFetch bool
	planExplain bool
)

func init() {
	planCmd.Flags().BoolVar(&planNoFetch, "no-fetch", false, "reuse the last persisted graph instead of fetching")
	planCmd.Flags().BoolVar(&planExplain, "explain", false, "print full change detail")
}

func runPlan(cmd *cobra.Command, args []string) error {
	global, _, _, err := computeDiff(cmd, planNoFetch)
	if err != nil {
		return err
	}
	formatter := output.NewFormatter(verbosityFromFlags(false, planExplain))
	return formatter.FormatDiff(global, cmd.OutOrStdout())
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jettylabs/jetty-access-control/internal/apply"
	"github.com/jettylabs/jetty-access-control/internal/output"
)

// applyCmd always fetches fresh (spec §4.10: a translator built from a
// stale graph could hand a connector a local id it no longer
// recognizes), computes the diff, and pushes it out to every connector
// that can act on it.
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the desired access configuration to every connector",
	RunE:  runApply,
}

var (
	applyExplain bool
	applyQuiet   bool
)

func init() {
	applyCmd.Flags().BoolVar(&applyExplain, "explain", false, "print full per-connector result detail")
	applyCmd.Flags().BoolVarP(&applyQuiet, "quiet", "q", false, "one-line summary")
}

func runApply(cmd *cobra.Command, args []string) error {
	global, _, translator, err := computeDiff(cmd, false)
	if err != nil {
		return err
	}

	set, err := buildConnectors(cmd.Context(), projectCfg, credManager, nil)
	if err != nil {
		return fmt.Errorf("configure connectors: %w", err)
	}
	defer set.closeAll()

	orchestrator := apply.New(set.byNamespace, translator)
	results := orchestrator.Apply(cmd.Context(), global)

	formatter := output.NewFormatter(verbosityFromFlags(applyQuiet, applyExplain))
	if err := formatter.FormatApply(results, cmd.OutOrStdout()); err != nil {
		return err
	}

	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("apply failed for at least one connector")
		}
	}
	return nil
}

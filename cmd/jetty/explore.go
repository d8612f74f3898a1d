package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jettylabs/jetty-access-control/internal/httpapi"
	"github.com/jettylabs/jetty-access-control/internal/logging"
	"github.com/jettylabs/jetty-access-control/internal/persistence"
)

// exploreCmd serves the read-only HTTP surface (spec §6) over the
// observed graph, for browsing effective access interactively rather
// than through one-shot `jetty subgraph` calls.
var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Serve the read-only HTTP API over the access graph",
	RunE:  runExplore,
}

var (
	exploreNoFetch bool
	exploreBind    string
)

func init() {
	exploreCmd.Flags().BoolVar(&exploreNoFetch, "no-fetch", false, "reuse the last persisted graph instead of fetching")
	exploreCmd.Flags().StringVar(&exploreBind, "bind", "127.0.0.1:8080", "address to listen on")
}

func runExplore(cmd *cobra.Command, args []string) error {
	graph, err := resolveGraph(cmd, exploreNoFetch)
	if err != nil {
		return err
	}

	store, err := persistence.Open(graphDBPath())
	if err != nil {
		return fmt.Errorf("open graph store: %w", err)
	}
	defer store.Close()

	server := httpapi.New(graph, store)
	logging.Info("serving access graph", "address", exploreBind)
	fmt.Printf("listening on http://%s\n", exploreBind)
	return http.ListenAndServe(exploreBind, server)
}

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// configureCmd walks through storing credentials for every connector
// declared in jetty_config.yaml, one (namespace, key) pair at a time,
// through the same priority chain `jetty fetch` resolves at runtime
// (env var, OS keyring, connectors.yaml, then an interactive prompt) —
// grounded on the teacher's `crisk configure` wizard, generalized from
// one fixed API key to an arbitrary set of per-connector secrets.
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactively store connector credentials",
	RunE:  runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	if len(projectCfg.Connectors) == 0 {
		fmt.Println("no connectors declared in", projectConfigPath())
		return nil
	}

	namespaces := make([]string, 0, len(projectCfg.Connectors))
	for ns := range projectCfg.Connectors {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		decl := projectCfg.Connectors[ns]
		fmt.Printf("\n%s (%s):\n", ns, decl.Type)
		for _, key := range credentialKeysFor(decl.Type) {
			if _, err := credManager.Get(ns, key, false); err != nil {
				return fmt.Errorf("%s/%s: %w", ns, key, err)
			}
		}
	}
	fmt.Println("\ncredentials configured")
	return nil
}

// credentialKeysFor names the secret keys each connector kind resolves
// through the credential manager (spec §4.11's user/password-style
// resolution; see internal/connector/{warehouse,bi}).
func credentialKeysFor(kind string) []string {
	switch kind {
	case "warehouse":
		return []string{"user", "password"}
	case "bi":
		return []string{"token"}
	default:
		return nil
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// bootstrapCmd seeds the YAML surfaces (groups/users/assets/tags) from
// the observed graph, so a new project starts from "what's actually
// out there" instead of an empty config — spec §6's bootstrap verb.
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Seed groups/users/assets/tags YAML from the observed graph",
	RunE:  runBootstrap,
}

var (
	bootstrapNoFetch   bool
	bootstrapOverwrite bool
)

func init() {
	bootstrapCmd.Flags().BoolVar(&bootstrapNoFetch, "no-fetch", false, "reuse the last persisted graph instead of fetching")
	bootstrapCmd.Flags().BoolVar(&bootstrapOverwrite, "overwrite", false, "overwrite existing YAML files")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	graph, err := resolveGraph(cmd, bootstrapNoFetch)
	if err != nil {
		return err
	}

	if err := ensureParentDir(groupsPath()); err != nil {
		return err
	}
	if err := ensureParentDir(filepath.Join(usersDir(), "x")); err != nil {
		return err
	}
	if err := ensureParentDir(filepath.Join(assetsDir(), "x")); err != nil {
		return err
	}

	if err := writeYAMLFile(groupsPath(), renderGroups(graph)); err != nil {
		return err
	}
	if err := writeYAMLFile(tagsPath(), renderTags(graph)); err != nil {
		return err
	}
	for name, doc := range renderUsers(graph) {
		if err := writeYAMLFile(filepath.Join(usersDir(), name+".yaml"), doc); err != nil {
			return err
		}
	}
	for name, doc := range renderAssets(graph) {
		if err := writeYAMLFile(filepath.Join(assetsDir(), name+".yaml"), doc); err != nil {
			return err
		}
	}
	return nil
}

func writeYAMLFile(path string, data []byte) error {
	if !bootstrapOverwrite {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("skip %s (exists; pass --overwrite)\n", path)
			return nil
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Println("wrote", path)
	return nil
}

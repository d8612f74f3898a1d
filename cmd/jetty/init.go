package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jettylabs/jetty-access-control/internal/config"
)

// initCmd scaffolds a new jetty project: jetty_config.yaml plus the
// empty groups/users/assets/tags YAML surfaces (spec §6), walking the
// user through each connector interactively (SPEC_FULL §6, grounded on
// rusty_jetty/jetty_cli's per-connector-kind inquiry prompts).
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new jetty project in the current directory",
	RunE:  runInit,
}

var (
	initFromTemplate string
	initProjectName  string
	initOverwrite    bool
)

func init() {
	initCmd.Flags().StringVar(&initFromTemplate, "from", "", "seed connectors from a named template")
	initCmd.Flags().StringVar(&initProjectName, "project-name", "", "project name (default: current directory name)")
	initCmd.Flags().BoolVar(&initOverwrite, "overwrite", false, "overwrite an existing jetty_config.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := projectConfigPath()
	if _, err := os.Stat(path); err == nil && !initOverwrite {
		return fmt.Errorf("%s already exists; pass --overwrite to replace it", path)
	}

	name := initProjectName
	if name == "" {
		cwd, _ := os.Getwd()
		name = filepath.Base(cwd)
	}

	cfg := config.Default()
	cfg.Name = name
	cfg.ProjectID = name

	if initFromTemplate != "" {
		applyTemplate(cfg, initFromTemplate)
	} else if isInteractiveStdin() {
		runConnectorWizard(cfg)
	}

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	_ = ensureParentDir(groupsPath())
	for _, dir := range []string{usersDir(), assetsDir()} {
		_ = os.MkdirAll(dir, 0o755)
	}
	if err := writeIfAbsent(groupsPath(), "groups:\n"); err != nil {
		return err
	}
	if err := writeIfAbsent(tagsPath(), "tags:\n"); err != nil {
		return err
	}

	fmt.Printf("Initialized jetty project %q in %s\n", name, path)
	fmt.Println("Next: `jetty configure` to store connector credentials, then `jetty fetch`.")
	return nil
}

// runConnectorWizard asks, per connector kind, whether to configure
// one now, then collects its jetty_config.yaml keys (credentials go
// through `jetty configure` / the credential manager, never into the
// project config itself).
func runConnectorWizard(cfg *config.ProjectConfig) {
	reader := bufio.NewReader(os.Stdin)
	kinds := []string{"warehouse", "bi", "transform"}

	fmt.Println("Connector setup (press Enter to skip a kind):")
	for _, kind := range kinds {
		fmt.Printf("Add a %s connector? (y/N): ", kind)
		resp, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(resp)) != "y" {
			continue
		}

		fmt.Print("  namespace (e.g. the connector's account/site name): ")
		nsResp, _ := reader.ReadString('\n')
		ns := strings.TrimSpace(nsResp)
		if ns == "" {
			continue
		}

		extra := map[string]any{}
		for _, key := range connectorKeysFor(kind) {
			fmt.Printf("  %s: ", key)
			v, _ := reader.ReadString('\n')
			extra[key] = strings.TrimSpace(v)
		}
		cfg.Connectors[ns] = config.ConnectorConfig{Type: kind, Extra: extra}
	}
}

func connectorKeysFor(kind string) []string {
	switch kind {
	case "warehouse":
		return []string{"account", "role", "warehouse"}
	case "bi":
		return []string{"server_url", "site_id", "rate_limit"}
	case "transform":
		return []string{"namespace", "manifest_table", "dialect"}
	default:
		return nil
	}
}

// applyTemplate seeds a starter connector declaration for a named
// template, skipping the interactive wizard entirely.
func applyTemplate(cfg *config.ProjectConfig, template string) {
	switch template {
	case "snowflake":
		cfg.Connectors["snowflake"] = config.ConnectorConfig{Type: "warehouse", Extra: map[string]any{
			"account": "", "role": "sysadmin", "warehouse": "compute_wh",
		}}
	case "tableau":
		cfg.Connectors["tableau"] = config.ConnectorConfig{Type: "bi", Extra: map[string]any{
			"server_url": "", "site_id": "", "rate_limit": 10,
		}}
	}
}

func isInteractiveStdin() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func writeIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

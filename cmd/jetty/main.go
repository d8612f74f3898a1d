package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jettylabs/jetty-access-control/internal/config"
	"github.com/jettylabs/jetty-access-control/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile     string
	projectDir  string
	verbose     bool
	projectCfg  *config.ProjectConfig
	credManager *config.CredentialManager
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jetty",
	Short: "Jetty — open-source data access control as code",
	Long: `Jetty builds an access graph from your data platforms, lets you
describe desired access as YAML, diffs it against what's observed, and
applies the difference back to the platforms that allow it.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(logging.DefaultConfig(verbose)); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}

		credManager = config.NewCredentialManager()

		cfg, err := config.Load(projectConfigPath())
		if err != nil {
			logging.Warn("failed to load project config, using defaults", "error", err)
			cfg = config.Default()
		}
		projectCfg = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "project config file (default: ./jetty_config.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", ".", "project root directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`jetty {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(subgraphCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(renameCmd)
}

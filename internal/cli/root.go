// Package cli implements the exoetl command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"exo-etl/internal/config"
)

// Execute runs the CLI and returns the process exit status.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "exoetl",
		Short:         "Idempotent DuckDB pipeline for exoplanet observations",
		Long:          "exoetl loads a raw exoplanet CSV into DuckDB, refines it through silver and gold layers, and exports aggregate CSV artifacts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCmd(), newStatusCmd(), newHistoryCmd())
	return rootCmd
}

// commonFlags are the settings shared by every subcommand.
type commonFlags struct {
	configPath  string
	projectRoot string
	dbPath      string
	metaDBPath  string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", config.DefaultFile, "Path to yaml config file")
	cmd.Flags().StringVar(&f.projectRoot, "project-root", "", "Project root (contains data/, docs/, artifacts/)")
	cmd.Flags().StringVar(&f.dbPath, "db-path", "", "DuckDB store path, relative to project root")
	cmd.Flags().StringVar(&f.metaDBPath, "meta-db-path", "", "Run-history SQLite path, relative to project root")
}

// resolve applies the flag > env > file > default precedence.
func (f *commonFlags) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("project-root") {
		cfg.ProjectRoot = f.projectRoot
	}
	if cmd.Flags().Changed("db-path") {
		cfg.DBPath = f.dbPath
	}
	if cmd.Flags().Changed("meta-db-path") {
		cfg.MetaDBPath = f.metaDBPath
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

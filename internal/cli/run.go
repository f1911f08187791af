package cli

import (
	"github.com/spf13/cobra"

	"exo-etl/internal/domain"
	"exo-etl/internal/engine"
	"exo-etl/internal/metastore"
	"exo-etl/internal/pipeline"
	"exo-etl/internal/workspace"
)

func newRunCmd() *cobra.Command {
	var (
		common commonFlags
		rawCSV string
		mode   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline",
		Long:  "Executes one stage or the full chain. Every stage drops and rebuilds its own tables and views, so repeated runs are idempotent.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := common.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("raw-csv") {
				cfg.RawCSV = rawCSV
			}
			if cmd.Flags().Changed("mode") {
				cfg.Mode = mode
			}

			runMode, err := domain.ParseMode(cfg.Mode)
			if err != nil {
				return err
			}

			paths, err := workspace.Resolve(cfg.ProjectRoot)
			if err != nil {
				return err
			}

			eng, err := engine.Open(paths.Join(cfg.DBPath), cfg.Threads)
			if err != nil {
				return err
			}
			defer eng.Close() //nolint:errcheck

			meta, err := metastore.Open(paths.Join(cfg.MetaDBPath))
			if err != nil {
				return err
			}
			defer meta.Close() //nolint:errcheck
			if err := metastore.Migrate(meta); err != nil {
				return err
			}

			runner := pipeline.NewRunner(eng, metastore.NewRunRepo(meta), paths.Artifacts, newLogger(cfg))
			return runner.Run(cmd.Context(), runMode, paths.Join(cfg.RawCSV))
		},
	}

	common.register(cmd)
	cmd.Flags().StringVar(&rawCSV, "raw-csv", "", "Raw input CSV path, relative to project root")
	cmd.Flags().StringVar(&mode, "mode", "", "Pipeline mode: refine, model, aggregate, export, all")
	return cmd
}

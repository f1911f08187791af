package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"exo-etl/internal/domain"
	"exo-etl/internal/engine"
	"exo-etl/internal/pipeline"
	"exo-etl/internal/workspace"
)

func newStatusCmd() *cobra.Command {
	var common commonFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which managed tables and views exist in the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := common.resolve(cmd)
			if err != nil {
				return err
			}
			paths, err := workspace.Resolve(cfg.ProjectRoot)
			if err != nil {
				return err
			}

			dbPath := paths.Join(cfg.DBPath)
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				fmt.Printf("store %s does not exist — nothing has been run yet\n", dbPath)
				return nil
			}

			eng, err := engine.Open(dbPath, cfg.Threads)
			if err != nil {
				return err
			}
			defer eng.Close() //nolint:errcheck

			ctx := cmd.Context()
			fmt.Printf("%-26s %-6s %-8s %s\n", "RELATION", "KIND", "EXISTS", "ROWS")
			for _, rel := range pipeline.ManagedRelations() {
				exists, err := relationExists(ctx, eng, rel)
				if err != nil {
					return err
				}
				rows := "-"
				if exists {
					n, err := eng.Count(ctx, rel.Name)
					if err != nil {
						return err
					}
					rows = fmt.Sprintf("%d", n)
				}
				fmt.Printf("%-26s %-6s %-8t %s\n", rel.Name, rel.Kind, exists, rows)
			}
			return nil
		},
	}

	common.register(cmd)
	return cmd
}

func relationExists(ctx context.Context, eng *engine.Engine, rel domain.Relation) (bool, error) {
	if rel.Kind == domain.ObjectView {
		return eng.ViewExists(ctx, rel.Name)
	}
	return eng.TableExists(ctx, rel.Name)
}

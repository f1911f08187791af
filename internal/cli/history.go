package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"exo-etl/internal/metastore"
	"exo-etl/internal/workspace"
)

func newHistoryCmd() *cobra.Command {
	var (
		common commonFlags
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := common.resolve(cmd)
			if err != nil {
				return err
			}
			paths, err := workspace.Resolve(cfg.ProjectRoot)
			if err != nil {
				return err
			}

			metaPath := paths.Join(cfg.MetaDBPath)
			if _, err := os.Stat(metaPath); os.IsNotExist(err) {
				fmt.Printf("metastore %s does not exist — no runs recorded yet\n", metaPath)
				return nil
			}

			meta, err := metastore.Open(metaPath)
			if err != nil {
				return err
			}
			defer meta.Close() //nolint:errcheck
			if err := metastore.Migrate(meta); err != nil {
				return err
			}

			ctx := cmd.Context()
			repo := metastore.NewRunRepo(meta)
			runs, err := repo.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}

			for _, run := range runs {
				fmt.Printf("%s  mode=%-9s status=%-8s started=%s\n",
					run.ID, run.Mode, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"))
				if run.Error != nil {
					fmt.Printf("    error: %s\n", *run.Error)
				}

				stageRuns, err := repo.ListStageRuns(ctx, run.ID)
				if err != nil {
					return err
				}
				for _, sr := range stageRuns {
					fmt.Printf("    %-12s %-8s %s\n", sr.Stage, sr.Status, formatRowCounts(sr.RowCounts))
				}
			}
			return nil
		},
	}

	common.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to list")
	return cmd
}

func formatRowCounts(counts map[string]int64) string {
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, " ")
}

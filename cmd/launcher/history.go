package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"extension-launcher/config"
	"extension-launcher/internal/repository"
	"extension-launcher/pkg/utils"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(configPath, cmd.Flags())
			if err != nil {
				return err
			}

			repo, err := repository.NewSQLiteRepository(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer repo.Close()

			runs, err := repo.ListRecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSTATUS\tCOMPLETED\tDURATION\tURL\tERROR")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n",
					run.StartedAt.Format("2006-01-02 15:04:05"),
					run.Status,
					run.Completed,
					utils.FormatDuration(run.Duration()),
					run.TargetURL,
					run.Error,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	cmd.Flags().String("db", "", "Run history database path")
	return cmd
}

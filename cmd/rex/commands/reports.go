package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adjust/Rex/pkg/reports"
)

func newReportsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reports [run-id]",
		Short: "Show stored run reports",
		Long: `List recent task runs, or show the per-host details of one run.

Requires --reports-db pointing at the SQLite file runs were saved to.`,
		Example: `  # Recent runs
  rex --reports-db rex.db reports

  # One run in detail
  rex --reports-db rex.db reports 3f1c...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reportsDB == "" {
				return fmt.Errorf("--reports-db is required")
			}

			store, err := reports.Open(cmd.Context(), reportsDB)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(cmd, store, args[0])
			}
			return listRuns(cmd, store, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")

	return cmd
}

func listRuns(cmd *cobra.Command, store *reports.Store, limit int) error {
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		status := "ok"
		if r.Failed {
			status = "FAILED"
		}
		fmt.Printf("%s  %-20s %-7s %s\n",
			r.ID, r.Task, status, r.StartedAt.Format(time.RFC3339))
	}
	return nil
}

func showRun(cmd *cobra.Command, store *reports.Store, id string) error {
	run, hosts, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Printf("run %s task=%s started=%s finished=%s\n",
		run.ID, run.Task,
		run.StartedAt.Format(time.RFC3339), run.FinishedAt.Format(time.RFC3339))
	for _, h := range hosts {
		line := fmt.Sprintf("  %-30s %-8s %dms", h.Host, h.Status, h.DurationMS)
		if h.Error != nil {
			line += "  " + *h.Error
		}
		fmt.Println(line)
	}
	return nil
}

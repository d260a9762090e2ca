package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/adjust/Rex/pkg/inventory"
	"github.com/adjust/Rex/pkg/reports"
	"github.com/adjust/Rex/pkg/tasks"
	"github.com/adjust/Rex/pkg/telemetry"
)

func newExecCommand() *cobra.Command {
	var (
		targets     []string
		parallelism int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "exec <command>",
		Short: "Run an ad-hoc command on hosts",
		Long: `Execute a shell command on one or more hosts.

Targets use user@host:port syntax; the special target "local" runs the
command on this machine without SSH. Hosts are processed with bounded
parallelism and per-host results are reported individually.`,
		Example: `  # Run uptime on two hosts as deploy
  rex exec uptime --host deploy@web1 --host deploy@web2

  # Run locally
  rex exec "df -h" --host local

  # Four hosts at a time, with a run report
  rex --reports-db rex.db exec "systemctl restart nginx" \
      --host web1 --host web2 --host web3 --host web4 -p 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]

			hosts, err := inventory.ParseTargets(targets)
			if err != nil {
				return err
			}

			c, err := newCMDB()
			if err != nil {
				return err
			}

			metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{
				Enabled:       metricsAddr != "",
				ListenAddress: metricsAddr,
			})
			if err != nil {
				return err
			}
			if err := metrics.StartServer(); err != nil {
				return err
			}
			defer func() { _ = metrics.Shutdown() }()

			runner := tasks.NewRunner(tasks.RunnerOptions{
				Registry:    tasks.NewRegistry(),
				CMDB:        c,
				Parallelism: parallelism,
				Metrics:     metrics,
			})

			run := runner.RunCommand(cmd.Context(), command, hosts)
			if err := saveReport(cmd.Context(), run); err != nil {
				log.Warn().Err(err).Msg("failed to save run report")
			}
			printRun(run)

			if run.Failed() {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&targets, "host", nil, "target host (repeatable, user@host:port)")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 1, "max concurrent hosts")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	_ = cmd.MarkFlagRequired("host")

	return cmd
}

// saveReport persists the run when reporting is enabled.
func saveReport(ctx context.Context, run *tasks.Run) error {
	if reportsDB == "" {
		return nil
	}
	store, err := reports.Open(ctx, reportsDB)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, run)
}

// printRun writes a per-host summary to stdout.
func printRun(run *tasks.Run) {
	fmt.Printf("run %s (%s)\n", run.ID, run.Task)
	for _, res := range run.Results {
		line := fmt.Sprintf("  %-30s %-8s %s", res.Host.String(), res.Status, res.Duration.Round(time.Millisecond))
		if res.Err != nil {
			line += "  " + res.Err.Error()
		}
		fmt.Println(line)
	}
}

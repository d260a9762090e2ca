package commands

import (
	"context"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/adjust/Rex/pkg/inventory"
	"github.com/adjust/Rex/pkg/tasks"
)

func newUploadCommand() *cobra.Command {
	var (
		targets     []string
		mode        string
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "upload <local-path> <remote-path>",
		Short: "Upload a file to hosts",
		Long: `Copy a local file to the same path on one or more hosts.

Remote transfers go over SFTP; the "local" target copies on this
machine. Parent directories are created as needed.`,
		Example: `  # Push a config file to two hosts
  rex upload ./nginx.conf /etc/nginx/nginx.conf --host web1 --host web2

  # With explicit permissions
  rex upload ./deploy.key /home/deploy/.ssh/id_rsa --host web1 --mode 0600`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			localPath, remotePath := args[0], args[1]

			fileMode, err := strconv.ParseUint(mode, 8, 32)
			if err != nil {
				return err
			}
			hosts, err := inventory.ParseTargets(targets)
			if err != nil {
				return err
			}

			registry := tasks.NewRegistry()
			err = registry.Register(&tasks.Task{
				Name:        "upload",
				Description: "upload " + localPath,
				Parallelism: parallelism,
				Run: func(ctx context.Context, tc *tasks.Context) error {
					return tc.Transport.Upload(ctx, localPath, remotePath, uint32(fileMode))
				},
			})
			if err != nil {
				return err
			}

			runner := tasks.NewRunner(tasks.RunnerOptions{Registry: registry})
			run, err := runner.RunTask(cmd.Context(), "upload", hosts, nil)
			if err != nil {
				return err
			}
			printRun(run)

			if run.Failed() {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&targets, "host", nil, "target host (repeatable, user@host:port)")
	cmd.Flags().StringVar(&mode, "mode", "0644", "remote file mode (octal)")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 1, "max concurrent hosts")
	_ = cmd.MarkFlagRequired("host")

	return cmd
}

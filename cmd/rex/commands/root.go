package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/adjust/Rex/pkg/cmdb"
	"github.com/adjust/Rex/pkg/template"
)

var (
	// Global flags
	logLevel      string
	environment   string
	cmdbDir       string
	templateStyle string
	reportsDB     string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rex",
		Short: "Rex - Host Automation Framework",
		Long: `Rex executes tasks and ad-hoc commands across local and remote hosts
over SSH, backed by a layered CMDB for per-host configuration data.

Features:
  - Layered YAML CMDB with environment/host cascade
  - Reference-expanding candidate paths
  - Ad-hoc command execution and file upload over SSH
  - Bounded parallel execution across host sets
  - SQLite-backed run reports`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if level, err := zerolog.ParseLevel(logLevel); err == nil {
				zerolog.SetGlobalLevel(level)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&environment, "environment", "e", "", "environment name for CMDB lookups")
	rootCmd.PersistentFlags().StringVar(&cmdbDir, "cmdb", "cmdb", "CMDB base directory")
	rootCmd.PersistentFlags().StringVar(&templateStyle, "template-style", "mustache", "CMDB content template style (mustache, tt)")
	rootCmd.PersistentFlags().StringVar(&reportsDB, "reports-db", "", "SQLite file for run reports (empty disables reporting)")

	rootCmd.AddCommand(newLookupCommand())
	rootCmd.AddCommand(newExecCommand())
	rootCmd.AddCommand(newUploadCommand())
	rootCmd.AddCommand(newReportsCommand())

	return rootCmd
}

// newCMDB builds the CMDB instance shared by the lookup and exec paths.
func newCMDB() (*cmdb.CMDB, error) {
	return cmdb.New(cmdb.Options{
		Path:        cmdb.Cascade{Dir: cmdbDir},
		Environment: cmdb.StaticEnvironment(environment),
		Engine:      template.New(template.Style(templateStyle)),
	})
}

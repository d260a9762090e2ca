package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newLookupCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "lookup [item]",
		Short: "Resolve CMDB data for a host",
		Long: `Resolve configuration data from the layered CMDB.

Without an item the full merged tree for the host is printed; with an
item only that key's value. Sources are consulted most-specific first:
{environment}/{server}.yml, {environment}/default.yml, {server}.yml,
default.yml under the CMDB base directory.`,
		Example: `  # Full merged tree for web1 in prod
  rex -e prod lookup --server web1

  # A single item
  rex -e prod lookup ntp_servers --server web1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := ""
			if len(args) == 1 {
				item = args[0]
			}

			c, err := newCMDB()
			if err != nil {
				return err
			}

			value, ok, err := c.Get(item, server)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(os.Stderr, "no value for %q on %s\n", item, server)
				os.Exit(1)
			}

			out, err := yaml.Marshal(value)
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server identity for the lookup")
	_ = cmd.MarkFlagRequired("server")

	return cmd
}

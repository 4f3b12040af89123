// Package cmd provides the lpu-server command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// NewRootCmd creates the root cobra command for lpu-server.
// When invoked without a subcommand, it delegates to "run".
func NewRootCmd(v string) *cobra.Command {
	version = v

	root := &cobra.Command{
		Use:   "lpu-server",
		Short: "Lightning Power Users — inbound capacity server",
		Long: "lpu-server coordinates inbound channel opens: it walks users through peering " +
			"with the operator's Lightning node, quotes capacity and chain fees, issues " +
			"invoices, and relays settlement events to the channel-opening service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringP("config", "c", "", "path to config file")

	return root
}

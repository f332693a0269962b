package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "atm",
		Short:        "ATM terminal simulator and its analytics pipeline",
		SilenceUsage: true,
	}

	cmd.AddCommand(consoleCmd())
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(analyticsCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

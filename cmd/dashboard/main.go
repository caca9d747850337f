package main

import (
	"os"

	"github.com/spf13/cobra"
)

var flagConfig string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dashboard",
		Short:        "Account dashboard behind OIDC sign-in",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("DASHBOARD_CONFIG"), "optional YAML config file (environment variables override it)")

	root.AddCommand(newServeCmd(), newCheckCmd())
	return root
}

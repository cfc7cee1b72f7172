package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kurumactl",
		Short: "Operator tooling for the kuruma compliance service",
		Long: `kurumactl evaluates seller compliance offline and mints access tokens
for local testing.

Available subcommands:
  evaluate - Evaluate counters and print the compliance report
  token    - Mint an access token for an account`,
		SilenceUsage: true,
	}
	root.AddCommand(newEvaluateCmd(), newTokenCmd())
	return root
}

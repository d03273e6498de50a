package main

import (
	"os"

	"github.com/spf13/cobra"
)

// envPrivateKey names the variable holding the paying wallet's hex key.
const envPrivateKey = "X402GUARD_PRIVATE_KEY"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "x402guard",
		Short:         "Pay-per-audit security scans for agent skills",
		Long:          "x402guard submits a skill URL or skill content for a paid security audit, paying the x402 challenge in USDC.",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newTiersCmd(), newScanCmd())
	return rootCmd
}

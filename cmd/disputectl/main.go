// disputectl inspects and answers Payrix chargebacks from the command line.
// It reads the same environment configuration as the API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "disputectl",
		Short:         "disputectl - Payrix chargeback lifecycle tool",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output as JSON")

	// Add subcommands
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(representCmd())
	rootCmd.AddCommand(acceptCmd())
	rootCmd.AddCommand(arbitrateCmd())
	rootCmd.AddCommand(actionableCmd())
	rootCmd.AddCommand(forTxnCmd())
	rootCmd.AddCommand(sweepCmd())

	return rootCmd
}

// Command shebacli runs the extraction, fingerprinting and matching pipeline
// offline, and mints development bearer tokens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shebacli",
		Short: "Offline tools for certificate verification",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	rootCmd.AddCommand(fingerprintCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(normalizeDateCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(tokenCmd())

	return rootCmd
}

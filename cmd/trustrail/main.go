// Package main is the entry point for the trustrail CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trustrail",
	Short: "Trust Receipt & Identity Engine CLI",
	Long: `The core engine for tamper-evident AI audit trails.
Manages signing identities, issues hash-chained trust receipts,
verifies receipt integrity, and exports receipt sets for SIEM tooling.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

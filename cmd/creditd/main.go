package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "creditd",
	Short: "Credit protocol daemon",
	Long: `creditd runs the credit protocol: rate-limited issuance, loans with
gauge-weighted debt ceilings, Dutch auctions for called loans and the
credit multiplier that socialises bad debt.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "creditd.yaml", "path to the daemon YAML config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateGenesisCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"ledgerd/logx"
)

var rootCmd = &cobra.Command{
	Use:   "ledgerd",
	Short: "ledgerd distributed ledger node CLI",
	Long:  "Command line interface for running and managing a ledgerd node.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}

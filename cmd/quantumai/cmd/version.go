package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the quantumai CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quantumai version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "Client and local dashboard for QuantumAI trading")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

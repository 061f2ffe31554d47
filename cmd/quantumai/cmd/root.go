package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quantumai",
	Short: "Command line client and local dashboard for QuantumAI trading",
	Long: `QuantumAI is a client for the QuantumAI trading backend.

It provides tools for:
  - Registering, signing in and managing the local session
  - Starting AI trades on the live backend
  - Watching simulated market activity
  - Serving the trading dashboard locally with a live trade feed

The session is kept in a local store (SQLite by default) and expires
seven days after login.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	envFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath(), "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with QUANTUMAI_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

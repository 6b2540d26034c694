package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rerun",
	Short: "Live script supervisor",
	Long: `rerun runs a Tengo script, watches its file, and reruns it on save.

While a script is in flight it can be stopped, paused, or rerun without
restarting the supervisor.

Use "rerun [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

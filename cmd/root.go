package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"MixFM/server"
)

var rootCmd = &cobra.Command{
	Use:   "mixfm",
	Short: "MixFM is a self-hosted mixtape sharing service.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

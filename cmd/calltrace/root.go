package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "calltrace",
	Short: "Calltrace profiles method-level call statistics of a running " +
		"process.",
	Long: `Calltrace accumulates call counts and wall times into per-thread
call trees, merges them periodically, and serves the merged statistics over
an HTTP API for live inspection.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

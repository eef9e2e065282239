// Package cli implements the pulse command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Agent Pulse - in-process observability engine for MCP agent hosts",
	Long: `Agent Pulse (pulse) is an observability engine for MCP agent hosts. It
aggregates counters, gauges, histograms, and timers, tracks per-endpoint
request latencies and error rates, classifies and deduplicates errors,
and evaluates alert rules with webhook/email delivery.

The serve command runs the engine with an MCP tool surface for agents to
report into; the remaining commands inspect exported snapshots.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pulse %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

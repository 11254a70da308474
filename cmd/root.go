// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "git-line-diffs",
	Short: "A CLI tool to aggregate line-level diff statistics of git workspaces.",
	Long: `git-line-diffs aggregates added and removed line counts of the uncommitted
changes in one or more git workspaces, attributes them to authors, and
summarises the most recent commits. It can print a one-shot report, keep
a live status line while watching the workspace, or serve the numbers over HTTP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (default: .git-line-diffs.yaml in CWD or $HOME)")
	rootCmd.PersistentFlags().StringArray("root", nil, "Workspace root to scan (repeatable; default: current directory)")
}

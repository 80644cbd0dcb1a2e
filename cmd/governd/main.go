// Governd is a governance daemon for autonomous agent actions.
//
// It evaluates agent intents against an ordered validator chain, tracks
// accepted work as lifecycle-managed tasks, and compensates failed task
// steps saga-style.
//
// Usage:
//
//	# Start the daemon with defaults
//	governd serve
//
//	# Start with an explicit config file
//	governd serve --config /etc/governd/config.yaml
//
//	# Configure via environment
//	SERVER_PORT=9614 STORE_DRIVER=sqlite STORE_PATH=/var/lib/governd/tasks.db governd serve
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "governd",
	Short: "Governance daemon for autonomous agent actions",
	Long: `governd evaluates agent intents against policy validators, manages
the lifecycle of accepted tasks, and rolls back failed task steps with
compensating undo actions.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/governd/config.yaml)")
	rootCmd.SetVersionTemplate("governd by Fyrsmith Labs\nVersion:    {{.Version}}\nCommit:     " + gitCommit + "\nBuild Date: " + buildDate + "\n")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
}

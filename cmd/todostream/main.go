// Package main is the entry point for the todostream CLI.
//
// todostream can be run either as a library (SDK) or as a standalone binary
// with a YAML or TOML configuration file. This CLI provides the standalone
// binary approach.
//
// Usage:
//
//	todostream serve -c config.yaml    # Start the dashboard
//	todostream validate -c config.yaml # Validate configuration
//	todostream version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "todostream",
	Short: "A shared todo list with live updates",
	Long: `todostream serves a shared todo list that stays live in every browser.

Every change is pushed to connected clients over Server-Sent Events, so all
open dashboards show the same list without reloading.

Quick start:
  1. Create a config file (todostream.yaml)
  2. Run: todostream serve -c todostream.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  title: Groceries
  port: 8080
  seed_file: todos.yaml
  todos:
    - id: "1"
      label: Buy milk`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this todostream binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("todostream %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}

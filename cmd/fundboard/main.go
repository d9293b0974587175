// Package main is the entry point for the fundboard CLI.
//
// fundboard can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	fundboard serve -c config.yaml    # Start the admin service
//	fundboard validate -c config.yaml # Validate configuration
//	fundboard statuses -c config.yaml # Print the backend's status list
//	fundboard version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "fundboard",
	Short: "Admin companion service for the research fund backend",
	Long: `fundboard serves the research fund admin's shared status lookup,
proxies PDF uploads to the backend, and shows a small dashboard.

Quick start:
  1. Create a config file (fundboard.yaml)
  2. Run: fundboard serve -c fundboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  status:
    url: ${BACKEND_URL}/api/statuses
  uploads:
    - name: fund-form
      path: /api/upload
      target: ${BACKEND_URL}/api/fund-forms/upload`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
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
	Long:  `Print the version, commit hash, and build date of this fundboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "fundboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

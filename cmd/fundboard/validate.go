package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/researchfund/fundboard/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a fundboard configuration file without starting the server.

This command parses the YAML, expands environment variables, validates all
fields and builds every upload route. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  fundboard validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// expanding the sets catches template and reserved path errors
	routes, err := config.BuildUploadRoutes(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Uploads)
	fromSets := len(routes) - direct

	refresh := cfg.Status.Refresh
	if refresh == "" {
		refresh = "@every 10m (default)"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:          %d\n", cfg.Port)
	fmt.Printf("  Status URL:    %s\n", cfg.Status.URL)
	fmt.Printf("  Refresh:       %s\n", refresh)
	fmt.Printf("  Upload routes: %d direct + %d from sets = %d total\n",
		direct, fromSets, len(routes))

	return nil
}

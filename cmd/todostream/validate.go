package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/todostream/config"
	"github.com/jpalmerr/todostream/internal/seed"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a todostream configuration file without starting the server.

This command parses the file, applies environment overrides, and validates
all fields. If a seed file is configured it is loaded and validated too.
It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  todostream validate -c config.yaml
  todostream validate --config /etc/todostream/config.toml`,
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

	todoSource := "inline"
	todoCount := len(cfg.Todos)
	if cfg.SeedFile != "" {
		state, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("invalid seed file: %w", err)
		}
		todoSource = cfg.SeedFile
		todoCount = len(state.Todos)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:          %d\n", cfg.Port)
	fmt.Printf("  Keep-alive:    %s\n", cfg.KeepAlive.Duration())
	fmt.Printf("  Retry:         %s\n", cfg.Retry.Duration())
	fmt.Printf("  Todos:         %d (%s)\n", todoCount, todoSource)

	return nil
}

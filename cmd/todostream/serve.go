package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/todostream"
	"github.com/jpalmerr/todostream/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the todostream server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the todostream dashboard server.

The server will:
  - Load configuration from the specified YAML or TOML file
  - Load the seed file, if any, and reload it whenever it changes
  - Serve the dashboard UI and its event streams on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM. Open event
streams are closed as soon as the signal arrives.

Example:
  todostream serve -c config.yaml
  todostream serve --config /etc/todostream/config.toml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"todos", len(cfg.Todos),
		"seed_file", cfg.SeedFile,
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"keep_alive", cfg.KeepAlive.Duration().String(),
	)

	opts := append(config.BuildOptions(cfg),
		todostream.WithLogger(logger),
		todostream.WithShutdownSignals(syscall.SIGINT, syscall.SIGTERM),
	)

	ts, err := todostream.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create todostream: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- ts.Start(ctx)
	}()

	// wait for server to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

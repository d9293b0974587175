package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/researchfund/fundboard"
	"github.com/researchfund/fundboard/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates the CLI logger: text on an interactive terminal, JSON
// otherwise.
func newLogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// serveCmd starts the fundboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin service",
	Long: `Start the fundboard server.

The server will:
  - Load configuration from the specified YAML file
  - Warm the status cache and refresh it on the configured schedule
  - Serve the status API, upload routes and dashboard on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  fundboard serve -c config.yaml
  fundboard serve --config /etc/fundboard/config.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().String("log-level", "", "override the config's log_level (debug, info, warn, error)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	levelName := cfg.LogLevel
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		levelName = override
	}
	level, err := config.ParseLogLevel(levelName)
	if err != nil {
		return err
	}
	logger := newLogger(level)

	logger.Info("config loaded",
		"uploads", len(cfg.Uploads),
		"upload_sets", len(cfg.UploadSets),
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"status_url", cfg.Status.URL,
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, fundboard.WithLogger(logger))

	fb, err := fundboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create fundboard: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server, blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- fb.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
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

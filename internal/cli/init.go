// Package cli provides the initialization steps shared by cmd/pmpv and
// cmd/pmpv-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pmpv/internal/backend"
	"pmpv/internal/config"
	"pmpv/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger creates the process logger at the configured level and makes
// it the slog default.
func SetupLogger(w io.Writer, level, component string) (*log.Logger, error) {
	if w == nil {
		w = os.Stdout
	}
	logger, err := log.Setup(w, level, component)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	return logger, nil
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it. apply, when set, adjusts the config before validation.
func LoadAndValidateConfig(apply func(*config.Config)) (*config.Config, error) {
	cfg := config.Load()
	if apply != nil {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// OpenBackend builds the quarter service and adapters for cfg.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. The
// received signal is logged.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

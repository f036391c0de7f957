package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"strategy-validation-lab/internal/config"
	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/logging"
)

// Runtime is what every binary needs before it can build an engine.
type Runtime struct {
	Config *config.Config
	Logger *zap.Logger
	Stores *Stores
}

// Start loads configuration from path (defaults when empty), builds the
// logger and opens the stores.
func Start(ctx context.Context, path string) (*Runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	stores, err := OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open stores: %w", err)
	}
	return &Runtime{Config: cfg, Logger: logger, Stores: stores}, nil
}

// Close releases the stores and flushes the logger.
func (r *Runtime) Close() error {
	err := r.Stores.Close()
	// Sync on stderr fails with EINVAL on some terminals.
	_ = r.Logger.Sync()
	return err
}

// ExitCode maps a run error to a process exit status: 0 on success, 2 for
// usage errors, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case domain.IsUsage(err):
		return 2
	default:
		return 1
	}
}

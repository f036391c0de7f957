// Package app wires configuration, stores and engines for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"strategy-validation-lab/internal/config"
	"strategy-validation-lab/internal/storage"
	chstore "strategy-validation-lab/internal/storage/clickhouse"
	"strategy-validation-lab/internal/storage/memory"
	"strategy-validation-lab/internal/storage/migrations"
	"strategy-validation-lab/internal/storage/parquet"
	pgstore "strategy-validation-lab/internal/storage/postgres"
	"strategy-validation-lab/internal/storage/sqlite"
)

// connectAttempts bounds retries for database connects.
const connectAttempts = 5

// Stores holds all storage implementations selected by configuration.
type Stores struct {
	Trials      storage.TrialRecordStore
	WalkForward storage.WalkForwardStore
	MonteCarlo  storage.MonteCarloStore
	Bars        storage.BarStore

	closers []func() error
}

// Close releases every opened connection.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStores opens the ledger backend, the optional ClickHouse store and the
// bar directory. Database connects are retried with exponential backoff.
func OpenStores(ctx context.Context, cfg config.Storage, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stores{Bars: parquet.NewBarStore(cfg.BarsDir)}

	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := retry(ctx, logger, "postgres", func() (*pgstore.Pool, error) {
			return pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		s.Trials = pgstore.NewTrialRecordStore(pool)
		s.WalkForward = pgstore.NewWalkForwardStore(pool)

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.Trials = sqlite.NewTrialRecordStore(db)
		s.WalkForward = sqlite.NewWalkForwardStore(db)

	default:
		s.Trials = memory.NewTrialRecordStore()
		s.WalkForward = memory.NewWalkForwardStore()
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := retry(ctx, logger, "clickhouse", func() (*chstore.Conn, error) {
			return migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, conn.Close)
		s.MonteCarlo = chstore.NewMonteCarloStore(conn)
	} else {
		s.MonteCarlo = memory.NewMonteCarloStore()
	}

	logger.Info("stores opened",
		zap.String("backend", cfg.Backend),
		zap.Bool("clickhouse", cfg.ClickhouseDSN != ""),
		zap.String("bars_dir", cfg.BarsDir),
	)
	return s, nil
}

// retry calls connect until it succeeds, the attempts run out or ctx ends.
func retry[T any](ctx context.Context, logger *zap.Logger, name string, connect func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second

	var out T
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		v, err := connect()
		if err != nil {
			logger.Warn("connect failed", zap.String("store", name), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		out = v
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, connectAttempts-1), ctx))
	if err != nil {
		return out, fmt.Errorf("connect %s: %w", name, err)
	}
	return out, nil
}

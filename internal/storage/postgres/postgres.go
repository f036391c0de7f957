// Package postgres persists trial ledgers and walk-forward results in PostgreSQL.
// Ledger rows are batched inside one transaction per run; combinations and
// metric sets are stored as JSONB.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE raised when a (run_id, index) key repeats.
const uniqueViolation = "23505"

// Pool is the connection pool shared by the ledger and walk-forward stores.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to the lab database and pings it. maxConns caps the pool
// at the search worker count; zero or less leaves the pgxpool default.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres ledger dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres ledger pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ledger unreachable: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Close releases every pooled connection.
func (p *Pool) Close() {
	p.Pool.Close()
}

// isDuplicateKeyError reports a second write to an existing (run_id, index).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isNotFoundError reports a lookup of a run with no stored rows.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// jsonb encodes a combination, metric set or window table for a JSONB column.
func jsonb(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb column: %w", err)
	}
	return b, nil
}

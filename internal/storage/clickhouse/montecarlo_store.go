package clickhouse

import (
	"context"
	"fmt"
	"time"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
)

// MonteCarloStore implements storage.MonteCarloStore using ClickHouse.
// Paths are never written; terminal values and percentiles are stored as arrays.
type MonteCarloStore struct {
	conn *Conn
}

// NewMonteCarloStore creates a new MonteCarloStore.
func NewMonteCarloStore(conn *Conn) *MonteCarloStore {
	return &MonteCarloStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MonteCarloStore = (*MonteCarloStore)(nil)

// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
func (s *MonteCarloStore) Insert(ctx context.Context, r *domain.MonteCarloResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	// ReplacingMergeTree would collapse a second row; keep append-only semantics.
	exists, err := s.exists(ctx, r.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	percentiles := make([]float64, len(r.Percentiles))
	values := make([]float64, len(r.Percentiles))
	for i, pv := range r.Percentiles {
		percentiles[i] = pv.Percentile
		values[i] = pv.Value
	}
	terminal := r.TerminalValues
	if terminal == nil {
		terminal = []float64{}
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO montecarlo_results (
			run_id, simulations, periods, initial_value, seed,
			mean_terminal, probability_of_loss,
			percentiles, percentile_values, terminal_values,
			created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		r.RunID, uint32(r.Simulations), uint32(r.Periods), r.InitialValue, r.Seed,
		r.MeanTerminal, r.ProbabilityOfLoss,
		percentiles, values, terminal,
		created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert montecarlo result: %w", err)
	}
	return nil
}

// GetByRunID retrieves a result (without paths). Returns ErrNotFound if not exists.
func (s *MonteCarloStore) GetByRunID(ctx context.Context, runID string) (*domain.MonteCarloResult, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT
			run_id, simulations, periods, initial_value, seed,
			mean_terminal, probability_of_loss,
			percentiles, percentile_values, terminal_values,
			created_at
		FROM montecarlo_results FINAL
		WHERE run_id = ?
		LIMIT 1
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query montecarlo result: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate montecarlo rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var (
		r                    domain.MonteCarloResult
		simulations, periods uint32
		percentiles, pvals   []float64
	)
	err = rows.Scan(
		&r.RunID, &simulations, &periods, &r.InitialValue, &r.Seed,
		&r.MeanTerminal, &r.ProbabilityOfLoss,
		&percentiles, &pvals, &r.TerminalValues,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan montecarlo row: %w", err)
	}
	if len(percentiles) != len(pvals) {
		return nil, fmt.Errorf("montecarlo %s: %d percentiles but %d values", runID, len(percentiles), len(pvals))
	}

	r.Simulations = int(simulations)
	r.Periods = int(periods)
	r.Percentiles = make([]domain.PercentileValue, len(percentiles))
	for i := range percentiles {
		r.Percentiles[i] = domain.PercentileValue{Percentile: percentiles[i], Value: pvals[i]}
	}
	return &r, nil
}

func (s *MonteCarloStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count() FROM montecarlo_results WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

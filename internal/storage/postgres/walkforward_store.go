package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
)

// WalkForwardStore implements storage.WalkForwardStore using PostgreSQL.
type WalkForwardStore struct {
	pool *Pool
}

// NewWalkForwardStore creates a new WalkForwardStore.
func NewWalkForwardStore(pool *Pool) *WalkForwardStore {
	return &WalkForwardStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalkForwardStore = (*WalkForwardStore)(nil)

// Insert adds a result and its window table in one transaction.
// Returns ErrDuplicateKey if run_id exists.
func (s *WalkForwardStore) Insert(ctx context.Context, r *domain.WalkForwardResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var discardedStart, discardedEnd *time.Time
	if r.Discarded != nil {
		discardedStart, discardedEnd = &r.Discarded.Start, &r.Discarded.End
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO walkforward_results (
			run_id, objective, range_start, range_end,
			train_days, test_days, anchored,
			succeeded, omitted,
			efficiency, consistency, mean_train, mean_test, std_test, verdict,
			discarded_start, discarded_end, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19
		)
	`,
		r.RunID, string(r.Objective), r.Range.Start, r.Range.End,
		r.TrainDays, r.TestDays, r.Anchored,
		r.Succeeded, r.Omitted,
		r.Efficiency, r.Consistency, r.MeanTrain, r.MeanTest, r.StdTest, string(r.Verdict),
		discardedStart, discardedEnd, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert walk-forward result: %w", err)
	}

	for _, w := range r.Windows {
		combo, err := jsonb(w.Combination)
		if err != nil {
			return err
		}
		train, err := jsonb(w.TrainMetrics)
		if err != nil {
			return err
		}
		test, err := jsonb(w.TestMetrics)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO walkforward_windows (
				run_id, window_index,
				train_start, train_end, test_start, test_end,
				combination, train_metric, test_metric, train_metrics, test_metrics,
				status, error
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`,
			r.RunID, w.Window.Index,
			w.Window.TrainRange.Start, w.Window.TrainRange.End, w.Window.TestRange.Start, w.Window.TestRange.End,
			combo, w.TrainMetric, w.TestMetric, train, test,
			string(w.Status), w.Error,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert walk-forward window: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves a result with windows ordered by index ASC.
// Returns ErrNotFound if not exists.
func (s *WalkForwardStore) GetByRunID(ctx context.Context, runID string) (*domain.WalkForwardResult, error) {
	var (
		r                            domain.WalkForwardResult
		objective, verdict           string
		discardedStart, discardedEnd *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT
			run_id, objective, range_start, range_end,
			train_days, test_days, anchored,
			succeeded, omitted,
			efficiency, consistency, mean_train, mean_test, std_test, verdict,
			discarded_start, discarded_end, started_at, finished_at
		FROM walkforward_results
		WHERE run_id = $1
	`, runID).Scan(
		&r.RunID, &objective, &r.Range.Start, &r.Range.End,
		&r.TrainDays, &r.TestDays, &r.Anchored,
		&r.Succeeded, &r.Omitted,
		&r.Efficiency, &r.Consistency, &r.MeanTrain, &r.MeanTest, &r.StdTest, &verdict,
		&discardedStart, &discardedEnd, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get walk-forward result: %w", err)
	}
	r.Objective = domain.Objective(objective)
	r.Verdict = domain.WalkForwardVerdict(verdict)
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if discardedStart != nil && discardedEnd != nil {
		r.Discarded = &domain.DateRange{Start: *discardedStart, End: *discardedEnd}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
			window_index,
			train_start, train_end, test_start, test_end,
			combination, train_metric, test_metric, train_metrics, test_metrics,
			status, error
		FROM walkforward_windows
		WHERE run_id = $1
		ORDER BY window_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get walk-forward windows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan walk-forward window row: %w", err)
		}
		r.Windows = append(r.Windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate walk-forward window rows: %w", err)
	}
	return &r, nil
}

func scanWindow(row pgx.Row) (domain.WindowResult, error) {
	var (
		w                  domain.WindowResult
		combo, train, test []byte
		status             string
	)
	err := row.Scan(
		&w.Window.Index,
		&w.Window.TrainRange.Start, &w.Window.TrainRange.End, &w.Window.TestRange.Start, &w.Window.TestRange.End,
		&combo, &w.TrainMetric, &w.TestMetric, &train, &test,
		&status, &w.Error,
	)
	if err != nil {
		return w, err
	}
	if err := json.Unmarshal(combo, &w.Combination); err != nil {
		return w, fmt.Errorf("decode combination: %w", err)
	}
	if err := json.Unmarshal(train, &w.TrainMetrics); err != nil {
		return w, fmt.Errorf("decode train metrics: %w", err)
	}
	if err := json.Unmarshal(test, &w.TestMetrics); err != nil {
		return w, fmt.Errorf("decode test metrics: %w", err)
	}
	w.Status = domain.WindowStatus(status)
	return w, nil
}

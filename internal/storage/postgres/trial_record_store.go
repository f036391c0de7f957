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

// TrialRecordStore implements storage.TrialRecordStore using PostgreSQL.
type TrialRecordStore struct {
	pool *Pool
}

// NewTrialRecordStore creates a new TrialRecordStore.
func NewTrialRecordStore(pool *Pool) *TrialRecordStore {
	return &TrialRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrialRecordStore = (*TrialRecordStore)(nil)

const trialColumns = `
	run_id, trial_index, combination,
	train_start, train_end, test_start, test_end,
	train_metrics, test_metrics,
	status, error, duration_ns`

// InsertBulk adds records atomically. Fails entire batch on any duplicate (run_id, index).
func (s *TrialRecordStore) InsertBulk(ctx context.Context, records []*domain.TrialRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.RunID == "" || r.Index < 0 {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trial_records (
			run_id, trial_index, combination, combination_key,
			train_start, train_end, test_start, test_end,
			train_metrics, test_metrics,
			status, error, duration_ns
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10,
			$11, $12, $13
		)
	`

	batch := &pgx.Batch{}
	for _, r := range records {
		combo, err := jsonb(r.Combination)
		if err != nil {
			return err
		}
		train, err := jsonb(r.TrainMetrics)
		if err != nil {
			return err
		}
		test, err := jsonb(r.TestMetrics)
		if err != nil {
			return err
		}
		batch.Queue(query,
			r.RunID, r.Index, combo, r.Combination.Key(),
			r.TrainRange.Start, r.TrainRange.End, r.TestRange.Start, r.TestRange.End,
			train, test,
			string(r.Status), r.Error, r.Duration.Nanoseconds(),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trial record in bulk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all records of a run, ordered by index ASC.
func (s *TrialRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.TrialRecord, error) {
	query := `SELECT ` + trialColumns + `
		FROM trial_records
		WHERE run_id = $1
		ORDER BY trial_index ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trial records by run id: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.TrialRecord, 0)
	for rows.Next() {
		r, err := scanTrialRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial record row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trial record rows: %w", err)
	}
	return records, nil
}

// GetRecord retrieves one record. Returns ErrNotFound if not exists.
func (s *TrialRecordStore) GetRecord(ctx context.Context, runID string, index int) (*domain.TrialRecord, error) {
	query := `SELECT ` + trialColumns + `
		FROM trial_records
		WHERE run_id = $1 AND trial_index = $2
	`

	r, err := scanTrialRecord(s.pool.QueryRow(ctx, query, runID, index))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trial record: %w", err)
	}
	return r, nil
}

// ListRuns summarizes every stored run, ordered by run_id ASC.
func (s *TrialRecordStore) ListRuns(ctx context.Context) ([]storage.RunInfo, error) {
	query := `
		SELECT run_id, COUNT(*), COUNT(*) FILTER (WHERE status = $1)
		FROM trial_records
		GROUP BY run_id
		ORDER BY run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(domain.TrialSucceeded))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []storage.RunInfo
	for rows.Next() {
		var info storage.RunInfo
		if err := rows.Scan(&info.RunID, &info.Trials, &info.Succeeded); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// scanTrialRecord scans a single row into a TrialRecord.
func scanTrialRecord(row pgx.Row) (*domain.TrialRecord, error) {
	var (
		r                  domain.TrialRecord
		combo, train, test []byte
		status             string
		durationNs         int64
	)
	err := row.Scan(
		&r.RunID, &r.Index, &combo,
		&r.TrainRange.Start, &r.TrainRange.End, &r.TestRange.Start, &r.TestRange.End,
		&train, &test,
		&status, &r.Error, &durationNs,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(combo, &r.Combination); err != nil {
		return nil, fmt.Errorf("decode combination: %w", err)
	}
	if err := json.Unmarshal(train, &r.TrainMetrics); err != nil {
		return nil, fmt.Errorf("decode train metrics: %w", err)
	}
	if err := json.Unmarshal(test, &r.TestMetrics); err != nil {
		return nil, fmt.Errorf("decode test metrics: %w", err)
	}
	r.Status = domain.TrialStatus(status)
	r.Duration = time.Duration(durationNs)
	return &r, nil
}

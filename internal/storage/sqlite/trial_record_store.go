package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
)

// TrialRecordStore implements storage.TrialRecordStore using SQLite.
type TrialRecordStore struct {
	db *DB
}

// NewTrialRecordStore creates a new TrialRecordStore.
func NewTrialRecordStore(db *DB) *TrialRecordStore {
	return &TrialRecordStore{db: db}
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trial_records (
			run_id, trial_index, combination, combination_key,
			train_start, train_end, test_start, test_end,
			train_metrics, test_metrics,
			status, error, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		combo, err := json.Marshal(r.Combination)
		if err != nil {
			return fmt.Errorf("encode combination: %w", err)
		}
		train, err := json.Marshal(r.TrainMetrics)
		if err != nil {
			return fmt.Errorf("encode train metrics: %w", err)
		}
		test, err := json.Marshal(r.TestMetrics)
		if err != nil {
			return fmt.Errorf("encode test metrics: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			r.RunID, r.Index, string(combo), r.Combination.Key(),
			formatDate(r.TrainRange.Start), formatDate(r.TrainRange.End),
			formatDate(r.TestRange.Start), formatDate(r.TestRange.End),
			string(train), string(test),
			string(r.Status), r.Error, r.Duration.Nanoseconds(),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trial record in bulk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all records of a run, ordered by index ASC.
func (s *TrialRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.TrialRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+trialColumns+`
		FROM trial_records
		WHERE run_id = ?
		ORDER BY trial_index ASC
	`, runID)
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
	row := s.db.QueryRowContext(ctx, `SELECT `+trialColumns+`
		FROM trial_records
		WHERE run_id = ? AND trial_index = ?
	`, runID, index)

	r, err := scanTrialRecord(row)
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, COUNT(*), SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		FROM trial_records
		GROUP BY run_id
		ORDER BY run_id ASC
	`, string(domain.TrialSucceeded))
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

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrialRecord(row scanner) (*domain.TrialRecord, error) {
	var (
		r                                              domain.TrialRecord
		combo, train, test                             string
		trainStart, trainEnd, testStart, testEnd, stat string
		durationNs                                     int64
	)
	err := row.Scan(
		&r.RunID, &r.Index, &combo,
		&trainStart, &trainEnd, &testStart, &testEnd,
		&train, &test,
		&stat, &r.Error, &durationNs,
	)
	if err != nil {
		return nil, err
	}

	if r.TrainRange, err = parseRange(trainStart, trainEnd); err != nil {
		return nil, err
	}
	if r.TestRange, err = parseRange(testStart, testEnd); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(combo), &r.Combination); err != nil {
		return nil, fmt.Errorf("decode combination: %w", err)
	}
	if err := json.Unmarshal([]byte(train), &r.TrainMetrics); err != nil {
		return nil, fmt.Errorf("decode train metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(test), &r.TestMetrics); err != nil {
		return nil, fmt.Errorf("decode test metrics: %w", err)
	}
	r.Status = domain.TrialStatus(stat)
	r.Duration = time.Duration(durationNs)
	return &r, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(domain.DateLayout)
}

func parseRange(start, end string) (domain.DateRange, error) {
	s, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("parse date %q: %w", start, err)
	}
	e, err := time.Parse(domain.DateLayout, end)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("parse date %q: %w", end, err)
	}
	return domain.DateRange{Start: s, End: e}, nil
}

package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
)

// WalkForwardStore implements storage.WalkForwardStore using SQLite.
// Each result is stored as one JSON document.
type WalkForwardStore struct {
	db *DB
}

// NewWalkForwardStore creates a new WalkForwardStore.
func NewWalkForwardStore(db *DB) *WalkForwardStore {
	return &WalkForwardStore{db: db}
}

// Compile-time interface check.
var _ storage.WalkForwardStore = (*WalkForwardStore)(nil)

// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
func (s *WalkForwardStore) Insert(ctx context.Context, r *domain.WalkForwardResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode walk-forward result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO walkforward_results (run_id, payload, verdict, started_at)
		VALUES (?, ?, ?, ?)
	`, r.RunID, string(payload), string(r.Verdict), r.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert walk-forward result: %w", err)
	}
	return nil
}

// GetByRunID retrieves a result. Returns ErrNotFound if not exists.
func (s *WalkForwardStore) GetByRunID(ctx context.Context, runID string) (*domain.WalkForwardResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM walkforward_results WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get walk-forward result: %w", err)
	}

	var r domain.WalkForwardResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode walk-forward result: %w", err)
	}
	return &r, nil
}

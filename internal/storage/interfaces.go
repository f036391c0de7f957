package storage

import (
	"context"
	"time"

	"strategy-validation-lab/internal/domain"
)

// TrialRecordStore persists search trial ledgers.
type TrialRecordStore interface {
	// InsertBulk adds records atomically. Fails entire batch on any duplicate (run_id, index).
	InsertBulk(ctx context.Context, records []*domain.TrialRecord) error

	// GetByRunID retrieves all records of a run, ordered by index ASC.
	// Returns an empty slice when the run is unknown.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TrialRecord, error)

	// GetRecord retrieves one record. Returns ErrNotFound if not exists.
	GetRecord(ctx context.Context, runID string, index int) (*domain.TrialRecord, error)

	// ListRuns summarizes every stored run, ordered by run_id ASC.
	ListRuns(ctx context.Context) ([]RunInfo, error)
}

// RunInfo summarizes one stored search run.
type RunInfo struct {
	RunID     string
	Trials    int
	Succeeded int
}

// WalkForwardStore persists walk-forward results (aggregate plus per-window table).
type WalkForwardStore interface {
	// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.WalkForwardResult) error

	// GetByRunID retrieves a result with windows ordered by index ASC.
	// Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.WalkForwardResult, error)
}

// MonteCarloStore persists Monte Carlo summaries. Paths are not persisted.
type MonteCarloStore interface {
	// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.MonteCarloResult) error

	// GetByRunID retrieves a result (without paths). Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.MonteCarloResult, error)
}

// BarStore provides historical daily bars for the reference strategy.
type BarStore interface {
	// WriteBars stores bars for a symbol. Existing bars with the same timestamp are replaced.
	WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error

	// ReadRange retrieves bars for a symbol within [start, end] (inclusive), ordered by timestamp ASC.
	ReadRange(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns every stored symbol, sorted.
	ListSymbols(ctx context.Context) ([]string, error)
}

package storage

import "errors"

// Ledgers, walk-forward tables and Monte Carlo summaries are written once per
// (run_id, index) and never updated. Every backend maps its native failures
// onto these errors.
var (
	// ErrNotFound means no run or bar file matches the lookup.
	ErrNotFound = errors.New("no stored record for run")

	// ErrDuplicateKey means the run already holds a record at that index;
	// a whole batch is rejected when any of its records collide.
	ErrDuplicateKey = errors.New("record already stored for run and index")

	// ErrInvalidInput means a record is nil or lacks its run ID or symbol.
	ErrInvalidInput = errors.New("record missing run id, symbol or payload")
)

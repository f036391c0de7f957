package search

import (
	"sort"
	"sync"

	"strategy-validation-lab/internal/domain"
)

// Ledger is the append-only trial ledger of one search run. Appends are
// serialized; Records returns enumeration order regardless of completion order.
type Ledger struct {
	mu      sync.Mutex
	records []domain.TrialRecord
}

// NewLedger creates an empty ledger with room for capacity records.
func NewLedger(capacity int) *Ledger {
	return &Ledger{records: make([]domain.TrialRecord, 0, capacity)}
}

// Append adds a fully built record.
func (l *Ledger) Append(rec domain.TrialRecord) {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// Len returns the number of records appended so far.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Records returns a copy of the records sorted by Index.
func (l *Ledger) Records() []domain.TrialRecord {
	l.mu.Lock()
	out := make([]domain.TrialRecord, len(l.records))
	copy(out, l.records)
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})
	return out
}

package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
)

// TrialRecordStore is an in-memory implementation of storage.TrialRecordStore.
type TrialRecordStore struct {
	mu   sync.RWMutex
	data map[string]map[int]*domain.TrialRecord // run_id -> index -> record
}

// NewTrialRecordStore creates a new in-memory trial record store.
func NewTrialRecordStore() *TrialRecordStore {
	return &TrialRecordStore{
		data: make(map[string]map[int]*domain.TrialRecord),
	}
}

type trialKey struct {
	runID string
	index int
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *TrialRecordStore) InsertBulk(_ context.Context, records []*domain.TrialRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[trialKey]struct{}, len(records))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range records {
		if r == nil || r.RunID == "" || r.Index < 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.RunID][r.Index]; exists {
			return storage.ErrDuplicateKey
		}
		key := trialKey{r.RunID, r.Index}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range records {
		run, ok := s.data[r.RunID]
		if !ok {
			run = make(map[int]*domain.TrialRecord)
			s.data[r.RunID] = run
		}
		recCopy := *r
		run[r.Index] = &recCopy
	}

	return nil
}

// GetByRunID retrieves all records of a run, ordered by index ASC.
func (s *TrialRecordStore) GetByRunID(_ context.Context, runID string) ([]*domain.TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TrialRecord, 0, len(s.data[runID]))
	for _, r := range s.data[runID] {
		recCopy := *r
		result = append(result, &recCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})
	return result, nil
}

// GetRecord retrieves one record. Returns ErrNotFound if not exists.
func (s *TrialRecordStore) GetRecord(_ context.Context, runID string, index int) (*domain.TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID][index]
	if !exists {
		return nil, storage.ErrNotFound
	}
	recCopy := *r
	return &recCopy, nil
}

// ListRuns summarizes every stored run, ordered by run_id ASC.
func (s *TrialRecordStore) ListRuns(_ context.Context) ([]storage.RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.RunInfo, 0, len(s.data))
	for runID, run := range s.data {
		info := storage.RunInfo{RunID: runID, Trials: len(run)}
		for _, r := range run {
			if r.Succeeded() {
				info.Succeeded++
			}
		}
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

var _ storage.TrialRecordStore = (*TrialRecordStore)(nil)

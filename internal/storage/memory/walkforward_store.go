package memory

import (
	"context"
	"sync"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
)

// WalkForwardStore is an in-memory implementation of storage.WalkForwardStore.
type WalkForwardStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalkForwardResult
}

// NewWalkForwardStore creates a new in-memory walk-forward store.
func NewWalkForwardStore() *WalkForwardStore {
	return &WalkForwardStore{
		data: make(map[string]*domain.WalkForwardResult),
	}
}

// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
func (s *WalkForwardStore) Insert(_ context.Context, r *domain.WalkForwardResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.RunID] = copyWalkForward(r)
	return nil
}

// GetByRunID retrieves a result. Returns ErrNotFound if not exists.
func (s *WalkForwardStore) GetByRunID(_ context.Context, runID string) (*domain.WalkForwardResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyWalkForward(r), nil
}

func copyWalkForward(r *domain.WalkForwardResult) *domain.WalkForwardResult {
	cp := *r
	cp.Windows = make([]domain.WindowResult, len(r.Windows))
	copy(cp.Windows, r.Windows)
	if r.Discarded != nil {
		d := *r.Discarded
		cp.Discarded = &d
	}
	return &cp
}

var _ storage.WalkForwardStore = (*WalkForwardStore)(nil)

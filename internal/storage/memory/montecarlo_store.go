package memory

import (
	"context"
	"sync"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
)

// MonteCarloStore is an in-memory implementation of storage.MonteCarloStore.
type MonteCarloStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MonteCarloResult
}

// NewMonteCarloStore creates a new in-memory Monte Carlo store.
func NewMonteCarloStore() *MonteCarloStore {
	return &MonteCarloStore{
		data: make(map[string]*domain.MonteCarloResult),
	}
}

// Insert adds a result without its paths. Returns ErrDuplicateKey if run_id exists.
func (s *MonteCarloStore) Insert(_ context.Context, r *domain.MonteCarloResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.RunID] = copyMonteCarlo(r)
	return nil
}

// GetByRunID retrieves a result. Returns ErrNotFound if not exists.
func (s *MonteCarloStore) GetByRunID(_ context.Context, runID string) (*domain.MonteCarloResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyMonteCarlo(r), nil
}

func copyMonteCarlo(r *domain.MonteCarloResult) *domain.MonteCarloResult {
	cp := *r
	cp.Paths = nil
	cp.TerminalValues = append([]float64(nil), r.TerminalValues...)
	cp.Percentiles = append([]domain.PercentileValue(nil), r.Percentiles...)
	return &cp
}

var _ storage.MonteCarloStore = (*MonteCarloStore)(nil)

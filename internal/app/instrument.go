package app

import (
	"context"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/observability"
	"strategy-validation-lab/internal/storage"
)

// Store labels for observability.Metrics.StoreErrors.
const (
	storeTrials      = "trials"
	storeWalkForward = "walkforward"
	storeMonteCarlo  = "montecarlo"
)

// countedTrials counts failed ledger writes.
type countedTrials struct {
	storage.TrialRecordStore
	m *observability.Metrics
}

func (s countedTrials) InsertBulk(ctx context.Context, records []*domain.TrialRecord) error {
	err := s.TrialRecordStore.InsertBulk(ctx, records)
	if err != nil {
		s.m.StoreFailed(storeTrials)
	}
	return err
}

type countedWalkForward struct {
	storage.WalkForwardStore
	m *observability.Metrics
}

func (s countedWalkForward) Insert(ctx context.Context, r *domain.WalkForwardResult) error {
	err := s.WalkForwardStore.Insert(ctx, r)
	if err != nil {
		s.m.StoreFailed(storeWalkForward)
	}
	return err
}

type countedMonteCarlo struct {
	storage.MonteCarloStore
	m *observability.Metrics
}

func (s countedMonteCarlo) Insert(ctx context.Context, r *domain.MonteCarloResult) error {
	err := s.MonteCarloStore.Insert(ctx, r)
	if err != nil {
		s.m.StoreFailed(storeMonteCarlo)
	}
	return err
}

// instrument wraps the result stores so failed writes show up in m.
func instrument(s *Stores, m *observability.Metrics) *Stores {
	if m == nil {
		return s
	}
	out := *s
	out.Trials = countedTrials{TrialRecordStore: s.Trials, m: m}
	out.WalkForward = countedWalkForward{WalkForwardStore: s.WalkForward, m: m}
	out.MonteCarlo = countedMonteCarlo{MonteCarloStore: s.MonteCarlo, m: m}
	return &out
}

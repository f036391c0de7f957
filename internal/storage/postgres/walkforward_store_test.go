package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
)

func createTestWalkForward(t *testing.T, runID string) *domain.WalkForwardResult {
	discarded := mustRange(t, "2024-12-20", "2024-12-31")
	started := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	combo := domain.NewCombination(domain.Assignment{Path: "signal.fast", Value: 10})

	return &domain.WalkForwardResult{
		RunID:     runID,
		Objective: domain.ObjectiveSharpe,
		Range:     mustRange(t, "2024-01-01", "2024-12-31"),
		TrainDays: 120,
		TestDays:  30,
		Windows: []domain.WindowResult{
			{
				Window: domain.WalkForwardWindow{
					Index:      0,
					TrainRange: mustRange(t, "2024-01-01", "2024-04-29"),
					TestRange:  mustRange(t, "2024-04-30", "2024-05-29"),
				},
				Combination:  combo,
				TrainMetric:  1.2,
				TestMetric:   0.9,
				TrainMetrics: domain.MetricSet{Sharpe: 1.2, Periods: 120},
				TestMetrics:  domain.MetricSet{Sharpe: 0.9, Periods: 30},
				Status:       domain.WindowSucceeded,
			},
			{
				Window: domain.WalkForwardWindow{
					Index:      1,
					TrainRange: mustRange(t, "2024-01-31", "2024-05-29"),
					TestRange:  mustRange(t, "2024-05-30", "2024-06-28"),
				},
				Combination: combo,
				Status:      domain.WindowOmitted,
				Error:       "select: total failure",
			},
		},
		Succeeded:   1,
		Omitted:     1,
		Efficiency:  0.75,
		Consistency: 1,
		MeanTrain:   1.2,
		MeanTest:    0.9,
		Verdict:     domain.WalkForwardRobust,
		StartedAt:   started,
		FinishedAt:  started.Add(time.Minute),
		Discarded:   &discarded,
	}
}

func TestWalkForwardStore_InsertAndGet(t *testing.T) {
	pool := ledgerDB(t)

	ctx := context.Background()
	store := NewWalkForwardStore(pool)

	want := createTestWalkForward(t, "wf-1")
	require.NoError(t, store.Insert(ctx, want))

	got, err := store.GetByRunID(ctx, "wf-1")
	require.NoError(t, err)

	assert.Equal(t, want.Objective, got.Objective)
	assert.Equal(t, want.Range, got.Range)
	assert.Equal(t, want.Verdict, got.Verdict)
	assert.InDelta(t, want.Efficiency, got.Efficiency, 1e-12)
	assert.Equal(t, want.Succeeded, got.Succeeded)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
	require.NotNil(t, got.Discarded)
	assert.Equal(t, *want.Discarded, *got.Discarded)

	require.Len(t, got.Windows, 2)
	assert.Equal(t, want.Windows[0].Window, got.Windows[0].Window)
	assert.Equal(t, "signal.fast=10", got.Windows[0].Combination.Key())
	assert.InDelta(t, 0.9, got.Windows[0].TestMetric, 1e-12)
	assert.Equal(t, domain.WindowOmitted, got.Windows[1].Status)
	assert.Equal(t, "select: total failure", got.Windows[1].Error)
}

func TestWalkForwardStore_Duplicate(t *testing.T) {
	pool := ledgerDB(t)

	ctx := context.Background()
	store := NewWalkForwardStore(pool)

	require.NoError(t, store.Insert(ctx, createTestWalkForward(t, "wf-1")))
	assert.ErrorIs(t, store.Insert(ctx, createTestWalkForward(t, "wf-1")), storage.ErrDuplicateKey)
}

func TestWalkForwardStore_NotFoundAndNoDiscard(t *testing.T) {
	pool := ledgerDB(t)

	ctx := context.Background()
	store := NewWalkForwardStore(pool)

	_, err := store.GetByRunID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	r := createTestWalkForward(t, "wf-2")
	r.Discarded = nil
	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetByRunID(ctx, "wf-2")
	require.NoError(t, err)
	assert.Nil(t, got.Discarded)
}

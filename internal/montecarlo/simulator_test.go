package montecarlo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
	"strategy-validation-lab/internal/storage/memory"
)

func series(returns ...float64) domain.ReturnSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(domain.ReturnSeries, len(returns))
	for i, r := range returns {
		out[i] = domain.ReturnPoint{Timestamp: start.AddDate(0, 0, i), Return: r}
	}
	return out
}

func constant(v float64, n int) domain.ReturnSeries {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	return series(vals...)
}

func TestSimulate_ConstantSeriesHasNoVariance(t *testing.T) {
	sim := New(Options{Workers: 4})

	res, err := sim.Simulate(context.Background(), Request{
		Returns:      constant(0.01, 100),
		Simulations:  1000,
		Percentiles:  []float64{0.05, 0.5, 0.95},
		InitialValue: 10_000,
		Seed:         7,
		KeepPaths:    true,
	})
	require.NoError(t, err)

	want := 10_000 * math.Pow(1.01, 100)
	require.Len(t, res.TerminalValues, 1000)
	for _, v := range res.TerminalValues {
		assert.InEpsilon(t, want, v, 1e-12)
	}
	for _, pv := range res.Percentiles {
		assert.InEpsilon(t, want, pv.Value, 1e-12)
	}
	assert.InEpsilon(t, want, res.MeanTerminal, 1e-12)
	assert.Zero(t, res.ProbabilityOfLoss)

	require.Len(t, res.Paths, 1000)
	assert.Len(t, res.Paths[0], 101)
	assert.Equal(t, 10_000.0, res.Paths[0][0])
}

func TestSimulate_DeterministicAcrossWorkerCounts(t *testing.T) {
	req := Request{
		Returns:      series(0.02, -0.01, 0.005, -0.03, 0.015, 0.0, 0.01),
		Simulations:  500,
		Percentiles:  []float64{0.1, 0.9},
		InitialValue: 1,
		Seed:         42,
	}

	a, err := New(Options{Workers: 1}).Simulate(context.Background(), req)
	require.NoError(t, err)
	b, err := New(Options{Workers: 8}).Simulate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a.TerminalValues, b.TerminalValues)
	assert.Equal(t, a.Percentiles, b.Percentiles)
	assert.Nil(t, a.Paths)

	req.Seed = 43
	c, err := New(Options{Workers: 1}).Simulate(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, a.TerminalValues, c.TerminalValues)
}

func TestSimulate_PercentilesAreOrdered(t *testing.T) {
	res, err := New(Options{}).Simulate(context.Background(), Request{
		Returns:      series(0.05, -0.04, 0.02, -0.02, 0.03),
		Simulations:  2000,
		Percentiles:  []float64{0, 0.05, 0.5, 0.95, 1},
		InitialValue: 100,
		Seed:         1,
	})
	require.NoError(t, err)

	for i := 1; i < len(res.Percentiles); i++ {
		assert.LessOrEqual(t, res.Percentiles[i-1].Value, res.Percentiles[i].Value)
	}
	p50, ok := res.Percentile(0.5)
	assert.True(t, ok)
	assert.Equal(t, res.Percentiles[2].Value, p50)
	_, ok = res.Percentile(0.25)
	assert.False(t, ok)

	assert.Greater(t, res.ProbabilityOfLoss, 0.0)
	assert.Less(t, res.ProbabilityOfLoss, 1.0)
}

func TestSimulate_NegativeValuesAreNotClamped(t *testing.T) {
	res, err := New(Options{}).Simulate(context.Background(), Request{
		Returns:      series(-2.5),
		Simulations:  3,
		InitialValue: 100,
	})
	require.NoError(t, err)

	for _, v := range res.TerminalValues {
		assert.Equal(t, -150.0, v)
	}
	assert.Equal(t, 1.0, res.ProbabilityOfLoss)
}

func TestSimulate_UsageErrors(t *testing.T) {
	sim := New(Options{})
	ok := Request{Returns: series(0.01), Simulations: 10, InitialValue: 1}

	tests := []struct {
		name   string
		mutate func(*Request)
		want   error
	}{
		{"empty returns", func(r *Request) { r.Returns = nil }, domain.ErrInsufficientData},
		{"zero simulations", func(r *Request) { r.Simulations = 0 }, domain.ErrInvalidSimulations},
		{"percentile above one", func(r *Request) { r.Percentiles = []float64{1.5} }, domain.ErrInvalidPercentile},
		{"percentile NaN", func(r *Request) { r.Percentiles = []float64{math.NaN()} }, domain.ErrInvalidPercentile},
		{"zero initial value", func(r *Request) { r.InitialValue = 0 }, domain.ErrInvalidInitialValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ok
			tt.mutate(&req)
			res, err := sim.Simulate(context.Background(), req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, domain.IsUsage(err))
		})
	}
}

func TestSimulate_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(Options{}).Simulate(ctx, Request{
		Returns:      series(0.01, 0.02),
		Simulations:  100,
		Percentiles:  []float64{0.5},
		InitialValue: 1,
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Simulations)
	assert.Empty(t, res.TerminalValues)
}

func TestSimulate_PersistsSummary(t *testing.T) {
	store := memory.NewMonteCarloStore()
	sim := New(Options{Store: store})

	res, err := sim.Simulate(context.Background(), Request{
		Returns:      series(0.01, -0.005, 0.002),
		Simulations:  50,
		Percentiles:  []float64{0.5},
		InitialValue: 1,
		KeepPaths:    true,
		RunID:        "mc-1",
	})
	require.NoError(t, err)

	stored, err := store.GetByRunID(context.Background(), "mc-1")
	require.NoError(t, err)
	assert.Nil(t, stored.Paths)
	assert.Equal(t, res.TerminalValues, stored.TerminalValues)
	assert.Equal(t, res.MeanTerminal, stored.MeanTerminal)

	_, err = sim.Simulate(context.Background(), Request{
		Returns: series(0.01), Simulations: 1, InitialValue: 1, RunID: "mc-1",
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

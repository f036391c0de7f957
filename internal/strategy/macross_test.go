package strategy

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage/memory"
	"strategy-validation-lab/internal/trial"
)

// countingStore counts ReadRange calls.
type countingStore struct {
	*memory.BarStore
	reads atomic.Int32
}

func (s *countingStore) ReadRange(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	s.reads.Add(1)
	return s.BarStore.ReadRange(ctx, symbol, start, end)
}

// trendingStore holds 30 daily SPY bars from 2024-01-01 rising 1% per day.
func trendingStore(t *testing.T) *countingStore {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 30)
	for i := range bars {
		c := 100 * math.Pow(1.01, float64(i))
		bars[i] = domain.Bar{Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	store := &countingStore{BarStore: memory.NewBarStore()}
	require.NoError(t, store.WriteBars(context.Background(), "SPY", bars))
	return store
}

func dateRange(t *testing.T, start, end string) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}

func TestMACross_LongInUptrend(t *testing.T) {
	exec := NewMACross(NewContext(trendingStore(t), baseTree()))

	returns, err := exec.Execute(context.Background(), domain.Combination{}, dateRange(t, "2024-01-10", "2024-01-20"), 100_000)
	require.NoError(t, err)
	require.NoError(t, returns.Validate())

	require.Len(t, returns, 11)
	for _, p := range returns {
		assert.InDelta(t, 0.01, p.Return, 1e-9)
	}
	assert.Equal(t, "2024-01-10", returns[0].Timestamp.Format(domain.DateLayout))
}

func TestMACross_WarmupAndCosts(t *testing.T) {
	tree := baseTree()
	require.NoError(t, tree.Set(PathCommissionBps, 10.0))
	require.NoError(t, tree.Set(PathFixedFee, 50.0))
	exec := NewMACross(NewContext(trendingStore(t), tree))

	returns, err := exec.Execute(context.Background(), domain.Combination{}, dateRange(t, "2024-01-01", "2024-01-10"), 100_000)
	require.NoError(t, err)

	// The first bar has no previous close.
	require.Len(t, returns, 9)
	// Flat until the slow average is defined at the fourth close.
	for i := 0; i < 3; i++ {
		assert.Zero(t, returns[i].Return)
	}
	// Entry pays 10 bps plus 50 on 100k.
	assert.InDelta(t, 0.01-0.0015, returns[3].Return, 1e-9)
	for _, p := range returns[4:] {
		assert.InDelta(t, 0.01, p.Return, 1e-9)
	}
}

func TestMACross_CombinationOverridesBase(t *testing.T) {
	exec := NewMACross(NewContext(trendingStore(t), baseTree()))
	r := dateRange(t, "2024-01-10", "2024-01-20")

	half := domain.NewCombination(domain.Assignment{Path: PathPositionSize, Value: 0.5})
	returns, err := exec.Execute(context.Background(), half, r, 100_000)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, returns[0].Return, 1e-9)

	_, err = exec.Execute(context.Background(),
		domain.NewCombination(domain.Assignment{Path: PathFast, Value: 8}), r, 100_000)
	assert.ErrorIs(t, err, ErrInvalidWindows)

	_, err = exec.Execute(context.Background(),
		domain.NewCombination(domain.Assignment{Path: "signal.medium", Value: 3}), r, 100_000)
	assert.ErrorIs(t, err, domain.ErrUnresolvablePath)
}

func TestMACross_NoBars(t *testing.T) {
	exec := NewMACross(NewContext(trendingStore(t), baseTree()))

	_, err := exec.Execute(context.Background(),
		domain.NewCombination(domain.Assignment{Path: PathSymbol, Value: "QQQ"}),
		dateRange(t, "2024-01-10", "2024-01-20"), 100_000)
	assert.ErrorIs(t, err, ErrNoBars)

	_, err = exec.Execute(context.Background(), domain.Combination{}, dateRange(t, "2023-01-01", "2023-06-30"), 100_000)
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestContext_CachesAndInvalidates(t *testing.T) {
	store := trendingStore(t)
	sctx := NewContext(store, baseTree())
	exec := NewMACross(sctx)
	r := dateRange(t, "2024-01-10", "2024-01-20")

	for i := 0; i < 3; i++ {
		_, err := exec.Execute(context.Background(), domain.Combination{}, r, 100_000)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.reads.Load())

	sctx.InvalidateSymbol("SPY")
	_, err := exec.Execute(context.Background(), domain.Combination{}, r, 100_000)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.reads.Load())

	sctx.Invalidate()
	_, err = exec.Execute(context.Background(), domain.Combination{}, r, 100_000)
	require.NoError(t, err)
	assert.Equal(t, int32(3), store.reads.Load())
}

func TestContext_BaseIsCopied(t *testing.T) {
	tree := baseTree()
	sctx := NewContext(trendingStore(t), tree)

	require.NoError(t, tree.Set(PathFast, 99))
	fast, err := sctx.Base().Int(PathFast)
	require.NoError(t, err)
	assert.Equal(t, 2, fast)

	sctx.SetBase(tree)
	fast, err = sctx.Base().Int(PathFast)
	require.NoError(t, err)
	assert.Equal(t, 99, fast)
}

func TestMACross_ThroughTrialRunner(t *testing.T) {
	runner := trial.NewRunner(trial.RunnerOptions{Executor: NewMACross(NewContext(trendingStore(t), baseTree()))})

	res := runner.Run(context.Background(), domain.Combination{}, dateRange(t, "2024-01-05", "2024-01-30"))
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, 26, res.Metrics.Periods)
	assert.Greater(t, res.Metrics.TotalReturn, 0.0)

	failed := runner.Run(context.Background(),
		domain.NewCombination(domain.Assignment{Path: PathSlow, Value: 1}), dateRange(t, "2024-01-05", "2024-01-30"))
	assert.False(t, failed.OK())
	assert.ErrorIs(t, failed.Err, domain.ErrExecution)
	assert.ErrorIs(t, failed.Err, ErrInvalidWindows)
}

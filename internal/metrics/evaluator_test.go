package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-validation-lab/internal/domain"
)

func series(returns ...float64) domain.ReturnSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(domain.ReturnSeries, len(returns))
	for i, r := range returns {
		out[i] = domain.ReturnPoint{Timestamp: start.AddDate(0, 0, i), Return: r}
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func alternating(a, b float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = a
		} else {
			out[i] = b
		}
	}
	return out
}

func assertFinite(t *testing.T, m domain.MetricSet) {
	t.Helper()
	for name, v := range map[string]float64{
		"total_return":          m.TotalReturn,
		"annualized_return":     m.AnnualizedReturn,
		"annualized_volatility": m.AnnualizedVolatility,
		"sharpe":                m.Sharpe,
		"sortino":               m.Sortino,
		"max_drawdown":          m.MaxDrawdown,
		"calmar":                m.Calmar,
		"win_rate":              m.WinRate,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s is not finite: %v", name, v)
	}
}

func TestEvaluate_ZeroVolatility(t *testing.T) {
	e := NewEvaluator(0, 252)
	m := e.Evaluate(series(repeat(0.01, 60)...))

	assert.Equal(t, 0.0, m.AnnualizedVolatility)
	assert.Equal(t, 0.0, m.Sharpe)
	assert.Equal(t, 0.0, m.Sortino)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.Calmar)
	assert.Equal(t, 60, m.Periods)
	assert.InDelta(t, math.Pow(1.01, 60)-1, m.TotalReturn, 1e-9)
	assertFinite(t, m)
}

func TestEvaluate_ZeroVolatilityVariousLevels(t *testing.T) {
	e := NewEvaluator(0.02, 252)
	for _, r := range []float64{-0.03, 0, 0.001, 0.1, 0.3} {
		for _, n := range []int{1, 19, 20, 21, 100} {
			m := e.Evaluate(series(repeat(r, n)...))
			assert.Equal(t, 0.0, m.Sharpe, "r=%v n=%d", r, n)
			assert.Equal(t, 0.0, m.Sortino, "r=%v n=%d", r, n)
			assertFinite(t, m)
		}
	}
}

func TestEvaluate_TooFewPeriods(t *testing.T) {
	e := NewEvaluator(0, 252)
	m := e.Evaluate(series(alternating(0.02, -0.01, MinPeriods-1)...))

	assert.Equal(t, 0.0, m.Sharpe)
	assert.Equal(t, 0.0, m.Sortino)
	assert.NotZero(t, m.AnnualizedVolatility)
}

func TestEvaluate_SharpeFormula(t *testing.T) {
	returns := alternating(0.02, -0.01, 40)
	e := NewEvaluator(0.01, 252)
	m := e.Evaluate(series(returns...))

	growth := Growth(returns)
	annReturn := math.Pow(growth, 252.0/40.0) - 1
	vol := StdDev(returns) * math.Sqrt(252)

	assert.InDelta(t, annReturn, m.AnnualizedReturn, 1e-9)
	assert.InDelta(t, vol, m.AnnualizedVolatility, 1e-9)
	assert.InDelta(t, (annReturn-0.01)/vol, m.Sharpe, 1e-9)
	assert.Greater(t, m.Sharpe, 0.0)
	assert.Equal(t, 0.5, m.WinRate)
}

func TestEvaluate_SortinoUsesDownsideOnly(t *testing.T) {
	// Losses vary so the downside deviation is non-zero.
	returns := make([]float64, 0, 40)
	for i := 0; i < 20; i++ {
		returns = append(returns, 0.02, -0.005*float64(1+i%3))
	}
	m := Evaluate(returns, 0, 252)

	var below []float64
	for _, r := range returns {
		if r < 0 {
			below = append(below, r)
		}
	}
	dd := StdDev(below) * math.Sqrt(252)
	require.NotZero(t, dd)
	assert.InDelta(t, m.AnnualizedReturn/dd, m.Sortino, 1e-9)
}

func TestEvaluate_SortinoNoDownside(t *testing.T) {
	m := Evaluate(alternating(0.01, 0.02, 30), 0, 252)
	assert.Equal(t, 0.0, m.Sortino)
	assert.NotZero(t, m.Sharpe)
}

func TestEvaluate_Calmar(t *testing.T) {
	returns := append(alternating(0.01, 0.005, 20), -0.1, 0.05)
	m := Evaluate(returns, 0, 252)

	require.Less(t, m.MaxDrawdown, 0.0)
	assert.InDelta(t, m.AnnualizedReturn/math.Abs(m.MaxDrawdown), m.Calmar, 1e-9)
}

func TestEvaluate_TotalLoss(t *testing.T) {
	m := Evaluate(append([]float64{-1}, repeat(0.01, 25)...), 0, 252)

	assert.Equal(t, -1.0, m.AnnualizedReturn)
	assert.Equal(t, -1.0, m.MaxDrawdown)
	assertFinite(t, m)
}

func TestEvaluate_NonFiniteInputIsSanitized(t *testing.T) {
	returns := append(alternating(0.01, -0.02, 30), math.NaN(), math.Inf(1))
	m := Evaluate(returns, 0, 252)
	assertFinite(t, m)
}

func TestEvaluate_Empty(t *testing.T) {
	m := NewEvaluator(0, 252).Evaluate(nil)
	assert.Equal(t, domain.MetricSet{}, m)
}

func TestNewEvaluator_DefaultsPeriodsPerYear(t *testing.T) {
	e := NewEvaluator(0, 0)
	assert.Equal(t, float64(DefaultPeriodsPerYear), e.PeriodsPerYear())
}

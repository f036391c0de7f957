package metrics

import (
	"math"

	"strategy-validation-lab/internal/domain"
)

// MinPeriods is the minimum series length for risk-adjusted ratios.
// Shorter series report Sharpe and Sortino as 0.
const MinPeriods = 20

// DefaultPeriodsPerYear assumes daily bars on trading days.
const DefaultPeriodsPerYear = 252

// Evaluator converts a return series into a MetricSet.
// It is pure: no side effects, no failure mode.
type Evaluator struct {
	riskFreeRate   float64
	periodsPerYear float64
}

// NewEvaluator creates an evaluator. riskFreeRate is annual.
// A non-positive periodsPerYear falls back to DefaultPeriodsPerYear.
func NewEvaluator(riskFreeRate, periodsPerYear float64) *Evaluator {
	if periodsPerYear <= 0 || math.IsNaN(periodsPerYear) {
		periodsPerYear = DefaultPeriodsPerYear
	}
	return &Evaluator{
		riskFreeRate:   Finite(riskFreeRate),
		periodsPerYear: periodsPerYear,
	}
}

// RiskFreeRate returns the annual risk-free rate.
func (e *Evaluator) RiskFreeRate() float64 { return e.riskFreeRate }

// PeriodsPerYear returns the annualization factor.
func (e *Evaluator) PeriodsPerYear() float64 { return e.periodsPerYear }

// Evaluate computes all metrics. Every field of the result is finite.
func (e *Evaluator) Evaluate(series domain.ReturnSeries) domain.MetricSet {
	return Evaluate(series.Values(), e.riskFreeRate, e.periodsPerYear)
}

// Evaluate computes a MetricSet from bare periodic returns.
func Evaluate(returns []float64, riskFreeRate, periodsPerYear float64) domain.MetricSet {
	n := len(returns)
	if n == 0 {
		return domain.MetricSet{}
	}
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}

	growth := Growth(returns)
	annReturn := annualize(growth, n, periodsPerYear)
	vol := StdDev(returns) * math.Sqrt(periodsPerYear)
	mdd := MaxDrawdown(returns)

	m := domain.MetricSet{
		TotalReturn:          growth - 1,
		AnnualizedReturn:     annReturn,
		AnnualizedVolatility: vol,
		MaxDrawdown:          mdd,
		WinRate:              WinRate(returns),
		Periods:              n,
	}

	if n >= MinPeriods {
		m.Sharpe = ratio(annReturn-riskFreeRate, vol)
		m.Sortino = ratio(annReturn-riskFreeRate, downsideDeviation(returns, riskFreeRate/periodsPerYear)*math.Sqrt(periodsPerYear))
	}
	if mdd != 0 {
		m.Calmar = ratio(annReturn, math.Abs(mdd))
	}

	return sanitize(m)
}

// annualize converts a terminal growth multiple over n periods into an annual rate.
// A wiped-out (or negative) curve annualizes to -100%.
func annualize(growth float64, n int, periodsPerYear float64) float64 {
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, periodsPerYear/float64(n)) - 1
}

// downsideDeviation is the sample std of the returns strictly below threshold.
func downsideDeviation(returns []float64, threshold float64) float64 {
	var below []float64
	for _, r := range returns {
		if r < threshold {
			below = append(below, r)
		}
	}
	return StdDev(below)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return Finite(num / den)
}

func sanitize(m domain.MetricSet) domain.MetricSet {
	m.TotalReturn = Finite(m.TotalReturn)
	m.AnnualizedReturn = Finite(m.AnnualizedReturn)
	m.AnnualizedVolatility = Finite(m.AnnualizedVolatility)
	m.Sharpe = Finite(m.Sharpe)
	m.Sortino = Finite(m.Sortino)
	m.MaxDrawdown = Finite(m.MaxDrawdown)
	m.Calmar = Finite(m.Calmar)
	m.WinRate = Finite(m.WinRate)
	return m
}

// Package trial runs one parameter combination over one date range through the
// strategy execution collaborator and turns the outcome into a tagged Result.
package trial

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/metrics"
)

// Executor is the strategy execution collaborator: it turns a parameter
// combination, a date range and a starting capital into a return series.
type Executor interface {
	Execute(ctx context.Context, combo domain.Combination, r domain.DateRange, capitalBase float64) (domain.ReturnSeries, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, combo domain.Combination, r domain.DateRange, capitalBase float64) (domain.ReturnSeries, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, combo domain.Combination, r domain.DateRange, capitalBase float64) (domain.ReturnSeries, error) {
	return f(ctx, combo, r, capitalBase)
}

// Result is either Succeeded (Err == nil, Metrics set) or Failed (Err is an
// *domain.ExecutionError).
type Result struct {
	Metrics domain.MetricSet
	Returns domain.ReturnSeries
	Err     error
	Elapsed time.Duration
}

// OK reports whether the trial succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Interrupted reports whether r failed only because ctx was cancelled or timed
// out. Such a result says nothing about the combination and is not recorded.
func (r Result) Interrupted(ctx context.Context) bool {
	if r.Err == nil || ctx.Err() == nil {
		return false
	}
	return errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)
}

// DefaultCapitalBase is used when RunnerOptions.CapitalBase is not positive.
const DefaultCapitalBase = 100_000

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Executor       Executor
	RiskFreeRate   float64
	PeriodsPerYear float64
	CapitalBase    float64
}

// Runner is the single isolation point between the search machinery and the
// strategy execution collaborator.
type Runner struct {
	executor    Executor
	evaluator   *metrics.Evaluator
	capitalBase float64
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOptions) *Runner {
	capital := opts.CapitalBase
	if capital <= 0 {
		capital = DefaultCapitalBase
	}
	return &Runner{
		executor:    opts.Executor,
		evaluator:   metrics.NewEvaluator(opts.RiskFreeRate, opts.PeriodsPerYear),
		capitalBase: capital,
	}
}

// Evaluator exposes the metric evaluator used for every trial.
func (r *Runner) Evaluator() *metrics.Evaluator {
	return r.evaluator
}

// Run executes combo over rng and evaluates the returns. Errors and panics
// raised by the executor, as well as unordered return series, are captured as
// a Failed result. Run never returns an error of its own.
func (r *Runner) Run(ctx context.Context, combo domain.Combination, rng domain.DateRange) Result {
	start := time.Now()

	returns, err := r.execute(ctx, combo, rng)
	if err == nil {
		err = returns.Validate()
	}
	if err != nil {
		return Result{
			Err:     &domain.ExecutionError{Combination: combo, Range: rng, Err: err},
			Elapsed: time.Since(start),
		}
	}

	return Result{
		Metrics: r.evaluator.Evaluate(returns),
		Returns: returns,
		Elapsed: time.Since(start),
	}
}

func (r *Runner) execute(ctx context.Context, combo domain.Combination, rng domain.DateRange) (returns domain.ReturnSeries, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	if r.executor == nil {
		return nil, fmt.Errorf("no executor configured")
	}
	return r.executor.Execute(ctx, combo, rng, r.capitalBase)
}

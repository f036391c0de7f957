package domain

import (
	"errors"
	"fmt"
)

// Usage errors are surfaced to the caller immediately and never retried.
var (
	// ErrUsage is the root of all caller-input errors.
	ErrUsage = errors.New("usage error")

	ErrEmptySpace           = fmt.Errorf("%w: parameter space has no parameters", ErrUsage)
	ErrEmptyValues          = fmt.Errorf("%w: parameter has no candidate values", ErrUsage)
	ErrDuplicateParameter   = fmt.Errorf("%w: parameter declared twice", ErrUsage)
	ErrNotEnumerable        = fmt.Errorf("%w: parameter cannot be enumerated for grid search", ErrUsage)
	ErrInvalidDistribution  = fmt.Errorf("%w: invalid parameter distribution", ErrUsage)
	ErrInvalidTrainFraction = fmt.Errorf("%w: train fraction must lie in (0, 1)", ErrUsage)
	ErrInvalidRange         = fmt.Errorf("%w: invalid date range", ErrUsage)
	ErrUnknownObjective     = fmt.Errorf("%w: unknown objective", ErrUsage)
	ErrInvalidIterations    = fmt.Errorf("%w: iterations must be positive", ErrUsage)
	ErrInvalidSimulations   = fmt.Errorf("%w: simulations must be positive", ErrUsage)
	ErrInvalidPercentile    = fmt.Errorf("%w: percentile must lie in [0, 1]", ErrUsage)
	ErrInvalidInitialValue  = fmt.Errorf("%w: initial value must be positive", ErrUsage)
	ErrInvalidWindow        = fmt.Errorf("%w: invalid walk-forward window", ErrUsage)
	ErrUnresolvablePath     = fmt.Errorf("%w: parameter path does not resolve", ErrUsage)
	ErrUnorderedReturns     = fmt.Errorf("%w: return timestamps must be strictly increasing", ErrUsage)

	// ErrInsufficientData is returned when a resampling input is empty.
	ErrInsufficientData = fmt.Errorf("%w: insufficient data", ErrUsage)
)

// ErrExecution marks failures raised by the strategy execution collaborator.
var ErrExecution = errors.New("execution failure")

// ErrTotalFailure is returned alongside a result when every trial or window failed.
// It is distinct from a run with nothing to do, which is rejected up front as a usage error.
var ErrTotalFailure = errors.New("total failure: every trial failed")

// ExecutionError records a strategy execution failure for one combination and date range.
type ExecutionError struct {
	Combination Combination
	Range       DateRange
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s on %s: %v", e.Combination.Key(), e.Range, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is reports ErrExecution so callers can test the failure class without a type assertion.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// IsUsage reports whether err belongs to the usage error family.
func IsUsage(err error) bool {
	return errors.Is(err, ErrUsage)
}

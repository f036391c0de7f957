package domain

import "time"

// PercentileValue is one requested percentile of the terminal value distribution.
type PercentileValue struct {
	Percentile float64 `json:"percentile"`
	Value      float64 `json:"value"`
}

// MonteCarloResult is the outcome of a bootstrap simulation.
type MonteCarloResult struct {
	RunID        string
	Simulations  int
	Periods      int
	InitialValue float64
	Seed         uint64

	// Paths holds one equity curve per simulation, starting at InitialValue.
	// Nil when paths were not retained.
	Paths          [][]float64
	TerminalValues []float64 // one per simulation, in simulation order
	Percentiles    []PercentileValue

	MeanTerminal      float64
	ProbabilityOfLoss float64 // share of terminal values below InitialValue
	CreatedAt         time.Time
}

// Percentile returns the terminal value computed for p.
func (r *MonteCarloResult) Percentile(p float64) (float64, bool) {
	for _, pv := range r.Percentiles {
		if pv.Percentile == p {
			return pv.Value, true
		}
	}
	return 0, false
}

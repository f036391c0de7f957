// Package strategy is the reference Strategy Execution collaborator: a
// moving-average crossover run over stored daily bars.
package strategy

// Strategy turns a closing price history into per-bar target positions.
type Strategy interface {
	// Positions returns one target position per close. positions[i] is held
	// from close i to close i+1.
	Positions(closes []float64) []float64

	// ID returns strategy identifier (includes parameters).
	ID() string
}

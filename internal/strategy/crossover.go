package strategy

import "fmt"

// CrossoverStrategy is long PositionSize while the fast average is above the
// slow one and flat otherwise.
type CrossoverStrategy struct {
	Fast         int
	Slow         int
	PositionSize float64
}

// NewCrossover creates a new CrossoverStrategy.
func NewCrossover(fast, slow int, size float64) *CrossoverStrategy {
	return &CrossoverStrategy{Fast: fast, Slow: slow, PositionSize: size}
}

// ID returns the strategy identifier including parameters.
func (s *CrossoverStrategy) ID() string {
	return fmt.Sprintf("MA_CROSS_%d_%d_x%g", s.Fast, s.Slow, s.PositionSize)
}

// Positions is flat until the slow average is defined.
func (s *CrossoverStrategy) Positions(closes []float64) []float64 {
	fast, _ := sma(closes, s.Fast)
	slow, ready := sma(closes, s.Slow)

	out := make([]float64, len(closes))
	for i := range closes {
		if ready[i] && fast[i] > slow[i] {
			out[i] = s.PositionSize
		}
	}
	return out
}

// Ensure CrossoverStrategy implements Strategy
var _ Strategy = (*CrossoverStrategy)(nil)

package params

import (
	"fmt"
	"math"
	"math/rand/v2"

	"strategy-validation-lab/internal/domain"
)

// Validate checks the structural invariants of a space.
func Validate(space domain.ParameterSpace) error {
	if len(space.Parameters) == 0 {
		return domain.ErrEmptySpace
	}
	seen := make(map[string]bool, len(space.Parameters))
	for _, p := range space.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: parameter without a name", domain.ErrInvalidDistribution)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateParameter, p.Name)
		}
		seen[p.Name] = true

		switch p.Kind {
		case domain.DistributionValues, domain.DistributionChoice:
			if len(p.Values) == 0 {
				return fmt.Errorf("%w: %s", domain.ErrEmptyValues, p.Name)
			}
		case domain.DistributionUniform:
			if math.IsNaN(p.Low) || math.IsNaN(p.High) || math.IsInf(p.Low, 0) || math.IsInf(p.High, 0) {
				return fmt.Errorf("%w: %s: bounds must be finite", domain.ErrInvalidDistribution, p.Name)
			}
			if p.High < p.Low {
				return fmt.Errorf("%w: %s: high %v < low %v", domain.ErrInvalidDistribution, p.Name, p.High, p.Low)
			}
			if p.Step < 0 || math.IsNaN(p.Step) {
				return fmt.Errorf("%w: %s: negative step", domain.ErrInvalidDistribution, p.Name)
			}
			if p.Integer && math.Ceil(p.Low) > math.Floor(p.High) {
				return fmt.Errorf("%w: %s: no integer in [%v, %v]", domain.ErrEmptyValues, p.Name, p.Low, p.High)
			}
		default:
			return fmt.Errorf("%w: %s: kind %q", domain.ErrInvalidDistribution, p.Name, p.Kind)
		}
	}
	return nil
}

// ValidateAgainst additionally checks that every parameter path resolves to a
// writable leaf of the base configuration.
func ValidateAgainst(space domain.ParameterSpace, base Tree) error {
	if err := Validate(space); err != nil {
		return err
	}
	for _, p := range space.Parameters {
		if _, err := base.Get(p.Name); err != nil {
			return err
		}
	}
	return nil
}

// Candidates returns the finite ordered candidate list of p.
// A uniform parameter is enumerable only when it has a positive step.
func Candidates(p domain.Parameter) ([]any, error) {
	switch p.Kind {
	case domain.DistributionValues, domain.DistributionChoice:
		if len(p.Values) == 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrEmptyValues, p.Name)
		}
		return p.Values, nil
	case domain.DistributionUniform:
		if p.Step <= 0 {
			return nil, fmt.Errorf("%w: %s has no step", domain.ErrNotEnumerable, p.Name)
		}
		var out []any
		// Offsets are multiplied rather than accumulated to avoid drift.
		for i := 0; ; i++ {
			v := p.Low + float64(i)*p.Step
			if v > p.High+p.Step*1e-9 {
				break
			}
			if p.Integer {
				out = append(out, int(math.Round(v)))
			} else {
				out = append(out, v)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s: kind %q", domain.ErrInvalidDistribution, p.Name, p.Kind)
	}
}

// GridSize returns the size of the Cartesian product.
func GridSize(space domain.ParameterSpace) (int, error) {
	if err := Validate(space); err != nil {
		return 0, err
	}
	size := 1
	for _, p := range space.Parameters {
		c, err := Candidates(p)
		if err != nil {
			return 0, err
		}
		size *= len(c)
	}
	return size, nil
}

// Grid enumerates the full Cartesian product in odometer order: the first
// parameter varies slowest, the last fastest.
func Grid(space domain.ParameterSpace) ([]domain.Combination, error) {
	if err := Validate(space); err != nil {
		return nil, err
	}

	lists := make([][]any, len(space.Parameters))
	size := 1
	for i, p := range space.Parameters {
		c, err := Candidates(p)
		if err != nil {
			return nil, err
		}
		lists[i] = c
		size *= len(c)
	}

	out := make([]domain.Combination, 0, size)
	idx := make([]int, len(lists))
	for {
		assignments := make([]domain.Assignment, len(lists))
		for i, p := range space.Parameters {
			assignments[i] = domain.Assignment{Path: p.Name, Value: lists[i][idx[i]]}
		}
		out = append(out, domain.NewCombination(assignments...))

		// Advance the odometer from the last position.
		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(lists[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return out, nil
		}
	}
}

// Sample draws one combination: uniform choice over discrete lists, uniform
// continuous draw over numeric ranges (uniform integer draw when Integer is set).
func Sample(space domain.ParameterSpace, rng *rand.Rand) (domain.Combination, error) {
	if err := Validate(space); err != nil {
		return domain.Combination{}, err
	}
	return sample(space, rng), nil
}

// SampleN draws n independent combinations. Repeats are allowed.
func SampleN(space domain.ParameterSpace, n int, rng *rand.Rand) ([]domain.Combination, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidIterations, n)
	}
	if err := Validate(space); err != nil {
		return nil, err
	}
	out := make([]domain.Combination, n)
	for i := range out {
		out[i] = sample(space, rng)
	}
	return out, nil
}

func sample(space domain.ParameterSpace, rng *rand.Rand) domain.Combination {
	assignments := make([]domain.Assignment, len(space.Parameters))
	for i, p := range space.Parameters {
		var v any
		switch p.Kind {
		case domain.DistributionUniform:
			if p.Integer {
				lo, hi := int(math.Ceil(p.Low)), int(math.Floor(p.High))
				v = lo + rng.IntN(hi-lo+1)
			} else {
				v = p.Low + rng.Float64()*(p.High-p.Low)
			}
		default:
			v = p.Values[rng.IntN(len(p.Values))]
		}
		assignments[i] = domain.Assignment{Path: p.Name, Value: v}
	}
	return domain.NewCombination(assignments...)
}

// NewRand returns a deterministic PCG-backed generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

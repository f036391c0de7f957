package walkforward

import (
	"context"
	"fmt"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/search"
	"strategy-validation-lab/internal/split"
)

// Selector picks the combination to evaluate for one window.
type Selector interface {
	Select(ctx context.Context, runID string, w domain.WalkForwardWindow) (domain.Combination, error)
}

// Fixed reuses one combination for every window.
type Fixed struct {
	Combination domain.Combination
}

// Select returns the fixed combination.
func (f Fixed) Select(context.Context, string, domain.WalkForwardWindow) (domain.Combination, error) {
	return f.Combination, nil
}

// SearchSelector re-optimizes on each window's train range and picks the best
// trial by its held-out objective.
type SearchSelector struct {
	Searcher      *search.Searcher
	Method        search.Method // grid when empty
	Space         domain.ParameterSpace
	Objective     domain.Objective
	TrainFraction float64
	Iterations    int
	Seed          uint64
}

// Validate checks the method and that every train window of spec can itself be
// split into train and test ranges.
func (s SearchSelector) Validate(spec WindowSpec) error {
	if _, err := search.ParseMethod(string(s.Method)); err != nil {
		return err
	}
	if spec.TrainDays < split.MinDays {
		return fmt.Errorf("%w: train window of %d days cannot be searched, need at least %d",
			domain.ErrInvalidWindow, spec.TrainDays, split.MinDays)
	}
	return nil
}

// Select runs a search restricted to w.TrainRange. Usage errors pass through
// unchanged so the analyzer can abort; a search in which every trial failed
// surfaces as domain.ErrTotalFailure.
func (s SearchSelector) Select(ctx context.Context, runID string, w domain.WalkForwardWindow) (domain.Combination, error) {
	req := search.Request{
		Space:         s.Space,
		Range:         w.TrainRange,
		Objective:     s.Objective,
		TrainFraction: s.TrainFraction,
		Iterations:    s.Iterations,
		Seed:          s.Seed + uint64(w.Index),
		RunID:         fmt.Sprintf("%s-w%03d", runID, w.Index),
	}

	method, err := search.ParseMethod(string(s.Method))
	if err != nil {
		return domain.Combination{}, err
	}
	var res *search.Result
	if method == search.MethodRandom {
		res, err = s.Searcher.RandomSearch(ctx, req)
	} else {
		res, err = s.Searcher.GridSearch(ctx, req)
	}
	if err != nil {
		return domain.Combination{}, err
	}

	best, ok := res.Best()
	if !ok {
		return domain.Combination{}, domain.ErrTotalFailure
	}
	return best.Combination, nil
}

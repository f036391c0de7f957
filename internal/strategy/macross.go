package strategy

import (
	"context"
	"fmt"
	"sort"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/trial"
)

// MACross executes the crossover strategy for one combination applied to the
// context's base tree. Signals are computed over the full stored history so
// the averages are warm at the start of the requested range.
type MACross struct {
	sctx *Context
}

// NewMACross creates a new MACross executor.
func NewMACross(sctx *Context) *MACross {
	return &MACross{sctx: sctx}
}

// Execute runs the strategy on r. The return of bar i is earned by the
// position decided at close i-1:
//   - return_i = position_{i-1} * (close_i / close_{i-1} - 1) - cost_i
//   - cost_i is charged when position_{i-1} differs from position_{i-2}
//
// Bars inside r with no previous close produce no return.
func (m *MACross) Execute(ctx context.Context, combo domain.Combination, r domain.DateRange, capitalBase float64) (domain.ReturnSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tree, err := m.sctx.Base().Apply(combo)
	if err != nil {
		return nil, err
	}
	cfg, err := ConfigFromTree(tree)
	if err != nil {
		return nil, err
	}
	strat, err := FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	bars, err := m.sctx.Bars(ctx, cfg.Symbol)
	if err != nil {
		return nil, err
	}

	first := sort.Search(len(bars), func(i int) bool {
		return !domain.TruncateDay(bars[i].Timestamp).Before(r.Start)
	})
	end := sort.Search(len(bars), func(i int) bool {
		return domain.TruncateDay(bars[i].Timestamp).After(r.End)
	})
	first = max(first, 1)
	if first >= end {
		return nil, fmt.Errorf("%w: %s %s", ErrNoBars, cfg.Symbol, r)
	}

	closes := make([]float64, end)
	for i := 0; i < end; i++ {
		closes[i] = bars[i].Close
	}
	positions := strat.Positions(closes)

	out := make(domain.ReturnSeries, 0, end-first)
	for i := first; i < end; i++ {
		if closes[i-1] <= 0 {
			return nil, fmt.Errorf("%s: non-positive close %v at %s", cfg.Symbol, closes[i-1],
				bars[i-1].Timestamp.Format(domain.DateLayout))
		}
		held := 0.0
		if i >= 2 {
			held = positions[i-2]
		}
		out = append(out, domain.ReturnPoint{
			Timestamp: bars[i].Timestamp,
			Return:    periodReturn(closes[i-1], closes[i], held, positions[i-1], cfg, capitalBase),
		})
	}
	return out, nil
}

// Ensure MACross implements trial.Executor
var _ trial.Executor = (*MACross)(nil)

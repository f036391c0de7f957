package reporting

import (
	"context"
	"fmt"
	"time"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/overfit"
	"strategy-validation-lab/internal/search"
	"strategy-validation-lab/internal/storage"
)

// DefaultTopN is the number of ranked trials shown when Input.TopN is zero.
const DefaultTopN = 10

// Input holds the runs to report on. Any part may be empty.
type Input struct {
	SearchRunID string
	Objective   domain.Objective
	Trials      []domain.TrialRecord // ledger in index order
	WalkForward *domain.WalkForwardResult
	MonteCarlo  *domain.MonteCarloResult
	TopN        int
}

// FromSearch builds an Input from a finished search.
func FromSearch(res *search.Result) Input {
	return Input{
		SearchRunID: res.RunID,
		Objective:   res.Objective,
		Trials:      res.Records,
	}
}

// Build assembles a report. The overfit score is taken from the best trial by
// test objective and records the number of trials searched.
func Build(in Input, generatedAt time.Time) (*Report, error) {
	r := &Report{GeneratedAt: generatedAt, WalkForward: in.WalkForward}

	if len(in.Trials) > 0 {
		if _, err := domain.ParseObjective(string(in.Objective)); err != nil {
			return nil, err
		}
		section, best, ok := buildSearch(in)
		r.Search = section
		if ok {
			score, err := overfit.FromRecord(best, in.Objective, len(in.Trials))
			if err != nil {
				return nil, err
			}
			r.Overfit = &score
		}
	}

	if mc := in.MonteCarlo; mc != nil {
		r.MonteCarlo = &MonteCarloSection{
			RunID:             mc.RunID,
			Simulations:       mc.Simulations,
			Periods:           mc.Periods,
			InitialValue:      mc.InitialValue,
			MeanTerminal:      mc.MeanTerminal,
			ProbabilityOfLoss: mc.ProbabilityOfLoss,
			Percentiles:       append([]domain.PercentileValue(nil), mc.Percentiles...),
		}
	}

	r.Checks, r.Outcome = evaluate(r)
	return r, nil
}

func buildSearch(in Input) (*SearchSection, domain.TrialRecord, bool) {
	res := search.FromLedger(in.SearchRunID, in.Objective, in.Trials)
	section := &SearchSection{
		RunID:      in.SearchRunID,
		Objective:  in.Objective,
		TrainRange: res.TrainRange,
		TestRange:  res.TestRange,
		Trials:     res.Total(),
		Succeeded:  res.Succeeded,
		Failed:     res.Failed,
	}
	for _, rec := range in.Trials {
		if !rec.Succeeded() {
			section.Failures = append(section.Failures, trialRow(rec, in.Objective))
		}
	}

	n := in.TopN
	if n == 0 {
		n = DefaultTopN
	}
	top := res.Top(n)
	for _, rec := range top {
		section.Top = append(section.Top, trialRow(rec, in.Objective))
	}
	if len(top) == 0 {
		return section, domain.TrialRecord{}, false
	}
	return section, top[0], true
}

func trialRow(rec domain.TrialRecord, objective domain.Objective) TrialRow {
	row := TrialRow{
		Index:       rec.Index,
		Combination: rec.Combination.Key(),
		TestMetrics: rec.TestMetrics,
		Error:       rec.Error,
	}
	row.TrainObjective, _ = rec.TrainMetrics.Value(objective)
	row.TestObjective, _ = rec.TestMetrics.Value(objective)
	return row
}

// Generator produces reports from stored runs.
type Generator struct {
	trials      storage.TrialRecordStore
	walkForward storage.WalkForwardStore
	monteCarlo  storage.MonteCarloStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. Any store may be nil.
func NewGenerator(
	trials storage.TrialRecordStore,
	walkForward storage.WalkForwardStore,
	monteCarlo storage.MonteCarloStore,
) *Generator {
	return &Generator{
		trials:      trials,
		walkForward: walkForward,
		monteCarlo:  monteCarlo,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Request names the stored runs to include. Empty IDs are skipped.
type Request struct {
	SearchRunID      string
	Objective        domain.Objective
	WalkForwardRunID string
	MonteCarloRunID  string
	TopN             int
}

// Generate loads the requested runs and builds the report.
func (g *Generator) Generate(ctx context.Context, req Request) (*Report, error) {
	in := Input{SearchRunID: req.SearchRunID, Objective: req.Objective, TopN: req.TopN}

	if req.SearchRunID != "" {
		if g.trials == nil {
			return nil, fmt.Errorf("%w: no trial store configured", domain.ErrUsage)
		}
		records, err := g.trials.GetByRunID(ctx, req.SearchRunID)
		if err != nil {
			return nil, fmt.Errorf("load trials %s: %w", req.SearchRunID, err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("load trials %s: %w", req.SearchRunID, storage.ErrNotFound)
		}
		in.Trials = make([]domain.TrialRecord, len(records))
		for i, rec := range records {
			in.Trials[i] = *rec
		}
	}

	if req.WalkForwardRunID != "" {
		if g.walkForward == nil {
			return nil, fmt.Errorf("%w: no walk-forward store configured", domain.ErrUsage)
		}
		wf, err := g.walkForward.GetByRunID(ctx, req.WalkForwardRunID)
		if err != nil {
			return nil, fmt.Errorf("load walk-forward %s: %w", req.WalkForwardRunID, err)
		}
		in.WalkForward = wf
	}

	if req.MonteCarloRunID != "" {
		if g.monteCarlo == nil {
			return nil, fmt.Errorf("%w: no monte carlo store configured", domain.ErrUsage)
		}
		mc, err := g.monteCarlo.GetByRunID(ctx, req.MonteCarloRunID)
		if err != nil {
			return nil, fmt.Errorf("load monte carlo %s: %w", req.MonteCarloRunID, err)
		}
		in.MonteCarlo = mc
	}

	return Build(in, g.now())
}

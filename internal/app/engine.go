package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"strategy-validation-lab/internal/config"
	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/montecarlo"
	"strategy-validation-lab/internal/observability"
	"strategy-validation-lab/internal/params"
	"strategy-validation-lab/internal/progress"
	"strategy-validation-lab/internal/search"
	"strategy-validation-lab/internal/storage"
	"strategy-validation-lab/internal/strategy"
	"strategy-validation-lab/internal/trial"
	"strategy-validation-lab/internal/walkforward"
)

// Engine bundles the validation engines built over one strategy context.
type Engine struct {
	Config    *config.Config
	Stores    *Stores
	Strategy  *strategy.Context
	Runner    *trial.Runner
	Searcher  *search.Searcher
	Simulator *montecarlo.Simulator
	Metrics   *observability.Metrics // may be nil
	Hub       *progress.Hub          // may be nil

	logger *zap.Logger
}

// EngineOptions configures NewEngine.
type EngineOptions struct {
	Config  *config.Config
	Stores  *Stores
	Base    params.Tree // base strategy configuration
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Hub     *progress.Hub
}

// NewEngine wires the reference strategy, trial runner, searcher and simulator.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	stores := instrument(opts.Stores, opts.Metrics)

	sctx := strategy.NewContext(stores.Bars, opts.Base)
	runner := trial.NewRunner(trial.RunnerOptions{
		Executor:       strategy.NewMACross(sctx),
		RiskFreeRate:   cfg.Engine.RiskFreeRate,
		PeriodsPerYear: cfg.Engine.PeriodsPerYear,
		CapitalBase:    cfg.Engine.CapitalBase,
	})

	e := &Engine{
		Config:   cfg,
		Stores:   stores,
		Strategy: sctx,
		Runner:   runner,
		Metrics:  opts.Metrics,
		Hub:      opts.Hub,
		logger:   logger,
	}

	var searchObservers []search.Observer
	if e.Metrics != nil {
		searchObservers = append(searchObservers, e.Metrics)
	}
	if e.Hub != nil {
		searchObservers = append(searchObservers, e.Hub)
	}

	e.Searcher = search.New(search.Options{
		Runner:    runner,
		Workers:   cfg.Engine.Workers,
		Logger:    logger.Named("search"),
		Observers: searchObservers,
		Store:     stores.Trials,
	})
	e.Simulator = montecarlo.New(montecarlo.Options{
		Workers: cfg.Engine.Workers,
		Logger:  logger.Named("montecarlo"),
		Store:   stores.MonteCarlo,
	})
	return e
}

// Analyzer builds a walk-forward analyzer for selector.
func (e *Engine) Analyzer(selector walkforward.Selector) *walkforward.Analyzer {
	var observers []walkforward.Observer
	if e.Metrics != nil {
		observers = append(observers, e.Metrics)
	}
	if e.Hub != nil {
		observers = append(observers, e.Hub)
	}
	return walkforward.New(walkforward.Options{
		Runner:    e.Runner,
		Selector:  selector,
		Workers:   e.Config.Engine.Workers,
		Logger:    e.logger.Named("walkforward"),
		Observers: observers,
		Store:     e.Stores.WalkForward,
	})
}

// SearchRequest fills a search request from configuration defaults.
func (e *Engine) SearchRequest(space domain.ParameterSpace, r domain.DateRange) search.Request {
	return search.Request{
		Space:         space,
		Range:         r,
		Objective:     domain.Objective(e.Config.Engine.Objective),
		TrainFraction: e.Config.Search.TrainFraction,
		Iterations:    e.Config.Search.Iterations,
		Seed:          e.Config.Engine.Seed,
	}
}

// Search runs a grid or random search per method ("grid" when empty).
func (e *Engine) Search(ctx context.Context, method search.Method, req search.Request) (*search.Result, error) {
	done := e.track(observability.KindSearch)
	var res *search.Result
	m, err := search.ParseMethod(string(method))
	switch m {
	case search.MethodRandom:
		res, err = e.Searcher.RandomSearch(ctx, req)
	case search.MethodGrid:
		res, err = e.Searcher.GridSearch(ctx, req)
	}
	done(runID(res), err)
	return res, err
}

// WalkForward runs a walk-forward analysis with selector.
func (e *Engine) WalkForward(ctx context.Context, selector walkforward.Selector, req walkforward.Request) (*domain.WalkForwardResult, error) {
	done := e.track(observability.KindWalkForward)
	res, err := e.Analyzer(selector).Run(ctx, req)
	id := ""
	if res != nil {
		id = res.RunID
	}
	done(id, err)
	return res, err
}

// MonteCarlo runs one simulation.
func (e *Engine) MonteCarlo(ctx context.Context, req montecarlo.Request) (*domain.MonteCarloResult, error) {
	done := e.track(observability.KindMonteCarlo)
	res, err := e.Simulator.Simulate(ctx, req)
	id := ""
	if res != nil {
		id = res.RunID
		if e.Metrics != nil {
			e.Metrics.SimulationsCompleted(len(res.TerminalValues))
		}
	}
	done(id, err)
	return res, err
}

// MonteCarloRequest fills a simulation request from configuration defaults.
func (e *Engine) MonteCarloRequest(returns domain.ReturnSeries) montecarlo.Request {
	mc := e.Config.MonteCarlo
	return montecarlo.Request{
		Returns:      returns,
		Simulations:  mc.Simulations,
		Percentiles:  mc.Percentiles,
		InitialValue: mc.InitialValue,
		Seed:         e.Config.Engine.Seed,
		KeepPaths:    mc.KeepPaths,
	}
}

// Returns executes the reference strategy for combo over r.
func (e *Engine) Returns(ctx context.Context, combo domain.Combination, r domain.DateRange) (domain.ReturnSeries, error) {
	return strategy.NewMACross(e.Strategy).Execute(ctx, combo, r, e.Config.Engine.CapitalBase)
}

// BestCombination loads a stored search run and returns its best combination
// by test objective.
func (e *Engine) BestCombination(ctx context.Context, runID string, objective domain.Objective) (domain.Combination, error) {
	if _, err := domain.ParseObjective(string(objective)); err != nil {
		return domain.Combination{}, err
	}
	stored, err := e.Stores.Trials.GetByRunID(ctx, runID)
	if err != nil {
		return domain.Combination{}, err
	}
	if len(stored) == 0 {
		return domain.Combination{}, fmt.Errorf("search run %s: %w", runID, storage.ErrNotFound)
	}
	records := make([]domain.TrialRecord, len(stored))
	for i, rec := range stored {
		records[i] = *rec
	}
	best, ok := search.FromLedger(runID, objective, records).Best()
	if !ok {
		return domain.Combination{}, fmt.Errorf("search run %s: %w", runID, domain.ErrTotalFailure)
	}
	return best.Combination, nil
}

// track records run metrics and progress for one run of kind.
func (e *Engine) track(kind string) func(runID string, err error) {
	var finish func(error)
	if e.Metrics != nil {
		finish = e.Metrics.RunStarted(kind)
	}
	return func(runID string, err error) {
		if finish != nil {
			finish(err)
		}
		if e.Hub != nil {
			e.Hub.RunFinished(runID, observability.Outcome(err), err)
		}
		if err != nil {
			e.logger.Warn("run ended with error", zap.String("kind", kind), zap.String("run_id", runID), zap.Error(err))
		}
	}
}

func runID(res *search.Result) string {
	if res == nil {
		return ""
	}
	return res.RunID
}

// Package walkforward re-validates parameter choices on rolling train/test
// windows and aggregates the per-window objective values.
package walkforward

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/metrics"
	"strategy-validation-lab/internal/overfit"
	"strategy-validation-lab/internal/storage"
	"strategy-validation-lab/internal/trial"
)

// Advisory verdict thresholds, applied to both efficiency and consistency.
const (
	RobustThreshold     = 0.7
	AcceptableThreshold = 0.5
)

// Observer is notified once per completed window, from worker goroutines.
type Observer interface {
	WindowCompleted(runID string, w domain.WindowResult)
}

// specValidator is implemented by selectors that constrain the window spec.
type specValidator interface {
	Validate(spec WindowSpec) error
}

// Analyzer runs walk-forward analyses.
type Analyzer struct {
	runner    *trial.Runner
	selector  Selector
	workers   int
	logger    *zap.Logger
	observers []Observer
	store     storage.WalkForwardStore
	now       func() time.Time
}

// Options for creating an Analyzer.
type Options struct {
	Runner    *trial.Runner // required
	Selector  Selector      // required
	Workers   int           // concurrent windows; defaults to NumCPU
	Logger    *zap.Logger
	Observers []Observer

	// Store, when set, receives the result once the run ends.
	Store storage.WalkForwardStore
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		runner:    opts.Runner,
		selector:  opts.Selector,
		workers:   workers,
		logger:    logger,
		observers: opts.Observers,
		store:     opts.Store,
		now:       time.Now,
	}
}

// Request describes one walk-forward run.
type Request struct {
	Range     domain.DateRange
	Spec      WindowSpec
	Objective domain.Objective
	RunID     string // generated when empty
}

// Run generates the windows, evaluates each one and aggregates the results.
// A window whose selection or execution fails is omitted and recorded, never
// aborting the run. Usage errors from the selector abort the run.
// Returned errors alongside a non-nil result:
//   - ctx.Err() when cancelled between windows
//   - domain.ErrTotalFailure when every window was omitted
//   - a storage error when persisting fails
func (a *Analyzer) Run(ctx context.Context, req Request) (*domain.WalkForwardResult, error) {
	if _, err := domain.ParseObjective(string(req.Objective)); err != nil {
		return nil, err
	}
	if a.selector == nil {
		return nil, fmt.Errorf("%w: no window selector configured", domain.ErrUsage)
	}
	windows, discarded, err := Windows(req.Range, req.Spec)
	if err != nil {
		return nil, err
	}
	if v, ok := a.selector.(specValidator); ok {
		if err := v.Validate(req.Spec); err != nil {
			return nil, err
		}
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	res := &domain.WalkForwardResult{
		RunID:     runID,
		Objective: req.Objective,
		Range:     req.Range,
		TrainDays: req.Spec.TrainDays,
		TestDays:  req.Spec.TestDays,
		Anchored:  req.Spec.Anchored,
		Discarded: discarded,
		StartedAt: a.now().UTC(),
	}

	log := a.logger.With(zap.String("run_id", runID))
	log.Info("walk-forward started",
		zap.Int("windows", len(windows)),
		zap.Int("train_days", req.Spec.TrainDays),
		zap.Int("test_days", req.Spec.TestDays),
		zap.Bool("anchored", req.Spec.Anchored),
	)
	if discarded != nil {
		log.Info("trailing partial window discarded", zap.Stringer("range", *discarded))
	}

	var (
		mu    sync.Mutex
		table = make([]domain.WindowResult, 0, len(windows))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, w := range windows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			wr, ok, err := a.evaluate(gctx, runID, w, req.Objective)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if wr.Status == domain.WindowOmitted {
				log.Warn("window omitted",
					zap.Int("index", w.Index),
					zap.Stringer("train", w.TrainRange),
					zap.Stringer("test", w.TestRange),
					zap.String("error", wr.Error),
				)
			}
			mu.Lock()
			table = append(table, wr)
			mu.Unlock()
			for _, o := range a.observers {
				o.WindowCompleted(runID, wr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(table, func(i, j int) bool {
		return table[i].Window.Index < table[j].Window.Index
	})
	res.Windows = table
	aggregate(res)
	res.FinishedAt = a.now().UTC()

	log.Info("walk-forward finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("omitted", res.Omitted),
		zap.Float64("efficiency", res.Efficiency),
		zap.Float64("consistency", res.Consistency),
		zap.String("verdict", string(res.Verdict)),
	)

	if a.store != nil && len(res.Windows) > 0 {
		if err := a.store.Insert(context.WithoutCancel(ctx), res); err != nil {
			return res, fmt.Errorf("persist walk-forward %s: %w", runID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if res.Succeeded == 0 {
		return res, fmt.Errorf("%w: %d of %d windows omitted", domain.ErrTotalFailure, res.Omitted, len(res.Windows))
	}
	return res, nil
}

// evaluate selects a combination for w and runs it on both ranges. Only usage
// errors are returned; every other failure becomes an omitted window. ok is
// false when cancellation interrupted the window, which is then not recorded.
func (a *Analyzer) evaluate(ctx context.Context, runID string, w domain.WalkForwardWindow, objective domain.Objective) (wr domain.WindowResult, ok bool, err error) {
	wr = domain.WindowResult{Window: w, Status: domain.WindowOmitted}

	combo, err := a.selector.Select(ctx, runID, w)
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return wr, false, nil
		}
		if domain.IsUsage(err) && !errors.Is(err, domain.ErrExecution) {
			return wr, false, fmt.Errorf("window %d: %w", w.Index, err)
		}
		wr.Error = fmt.Sprintf("select: %v", err)
		return wr, true, nil
	}
	wr.Combination = combo

	trainRes := a.runner.Run(ctx, combo, w.TrainRange)
	if trainRes.Interrupted(ctx) {
		return wr, false, nil
	}
	if !trainRes.OK() {
		wr.Error = trainRes.Err.Error()
		return wr, true, nil
	}
	testRes := a.runner.Run(ctx, combo, w.TestRange)
	if testRes.Interrupted(ctx) {
		return wr, false, nil
	}
	if !testRes.OK() {
		wr.TrainMetrics = trainRes.Metrics
		wr.Error = testRes.Err.Error()
		return wr, true, nil
	}

	wr.TrainMetrics = trainRes.Metrics
	wr.TestMetrics = testRes.Metrics
	wr.TrainMetric, _ = trainRes.Metrics.Value(objective)
	wr.TestMetric, _ = testRes.Metrics.Value(objective)
	wr.Status = domain.WindowSucceeded
	return wr, true, nil
}

// aggregate fills the summary statistics from the succeeded windows.
func aggregate(res *domain.WalkForwardResult) {
	var train, test []float64
	positive := 0
	for _, wr := range res.Windows {
		if wr.Status != domain.WindowSucceeded {
			res.Omitted++
			continue
		}
		res.Succeeded++
		train = append(train, wr.TrainMetric)
		test = append(test, wr.TestMetric)
		if wr.TestMetric > 0 {
			positive++
		}
	}
	if res.Succeeded == 0 {
		res.Verdict = domain.WalkForwardNeedsRevision
		return
	}

	res.MeanTrain = metrics.Mean(train)
	res.MeanTest = metrics.Mean(test)
	res.StdTest = metrics.StdDev(test)
	res.Efficiency = overfit.Efficiency(res.MeanTrain, res.MeanTest)
	res.Consistency = float64(positive) / float64(res.Succeeded)
	res.Verdict = Verdict(res.Efficiency, res.Consistency)
}

// Verdict is the advisory reading of efficiency and consistency.
func Verdict(efficiency, consistency float64) domain.WalkForwardVerdict {
	switch {
	case efficiency >= RobustThreshold && consistency >= RobustThreshold:
		return domain.WalkForwardRobust
	case efficiency >= AcceptableThreshold && consistency >= AcceptableThreshold:
		return domain.WalkForwardAcceptable
	default:
		return domain.WalkForwardNeedsRevision
	}
}

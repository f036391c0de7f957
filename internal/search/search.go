// Package search drives grid and random parameter searches over a train/test
// split and collects every trial into an ordered ledger.
package search

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/params"
	"strategy-validation-lab/internal/split"
	"strategy-validation-lab/internal/storage"
	"strategy-validation-lab/internal/trial"
)

// Observer is notified once per completed trial, from worker goroutines.
type Observer interface {
	TrialCompleted(rec domain.TrialRecord)
}

// Searcher runs parameter searches.
type Searcher struct {
	runner    *trial.Runner
	workers   int
	logger    *zap.Logger
	observers []Observer
	store     storage.TrialRecordStore
	now       func() time.Time
}

// Options for creating a Searcher.
type Options struct {
	Runner    *trial.Runner // required
	Workers   int           // concurrent trials; defaults to NumCPU
	Logger    *zap.Logger
	Observers []Observer

	// Store, when set, receives the ledger once the run ends.
	Store storage.TrialRecordStore
}

// New creates a Searcher.
func New(opts Options) *Searcher {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		runner:    opts.Runner,
		workers:   workers,
		logger:    logger,
		observers: opts.Observers,
		store:     opts.Store,
		now:       time.Now,
	}
}

// Request describes one search run. Iterations and Seed apply to random search only.
type Request struct {
	Space         domain.ParameterSpace
	Range         domain.DateRange
	Objective     domain.Objective
	TrainFraction float64 // must lie in (0, 1)
	Iterations    int
	Seed          uint64
	RunID         string // generated when empty
}

// GridSearch evaluates the full Cartesian product of the space.
func (s *Searcher) GridSearch(ctx context.Context, req Request) (*Result, error) {
	if _, err := domain.ParseObjective(string(req.Objective)); err != nil {
		return nil, err
	}
	combos, err := params.Grid(req.Space)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, MethodGrid, req, combos)
}

// RandomSearch evaluates req.Iterations independent draws from the space.
// Repeated combinations are re-run.
func (s *Searcher) RandomSearch(ctx context.Context, req Request) (*Result, error) {
	if _, err := domain.ParseObjective(string(req.Objective)); err != nil {
		return nil, err
	}
	combos, err := params.SampleN(req.Space, req.Iterations, params.NewRand(req.Seed))
	if err != nil {
		return nil, err
	}
	return s.run(ctx, MethodRandom, req, combos)
}

// run executes combos on a bounded worker pool. Returned errors:
//   - ctx.Err() with the partial result when cancelled between trials
//   - domain.ErrTotalFailure with the full result when no trial succeeded
//   - a storage error with the full result when persisting the ledger fails
func (s *Searcher) run(ctx context.Context, method Method, req Request, combos []domain.Combination) (*Result, error) {
	train, test, err := split.Split(req.Range, req.TrainFraction)
	if err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	res := &Result{
		RunID:      runID,
		Method:     method,
		Objective:  req.Objective,
		Range:      req.Range,
		TrainRange: train,
		TestRange:  test,
		Planned:    len(combos),
		StartedAt:  s.now().UTC(),
	}

	log := s.logger.With(zap.String("run_id", runID), zap.String("method", string(method)))
	log.Info("search started",
		zap.Int("combinations", len(combos)),
		zap.Stringer("train", train),
		zap.Stringer("test", test),
		zap.Int("workers", s.workers),
	)

	ledger := NewLedger(len(combos))
	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, combo := range combos {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rec, ok := s.evaluate(ctx, runID, i, combo, train, test)
			if !ok {
				return nil
			}
			if !rec.Succeeded() {
				log.Warn("trial failed",
					zap.Int("index", i),
					zap.String("combination", combo.Key()),
					zap.String("error", rec.Error),
				)
			}
			ledger.Append(rec)
			for _, o := range s.observers {
				o.TrialCompleted(rec)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Records = ledger.Records()
	for _, rec := range res.Records {
		if rec.Succeeded() {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	res.FinishedAt = s.now().UTC()

	log.Info("search finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)

	if err := s.persist(ctx, res); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if res.Succeeded == 0 {
		return res, fmt.Errorf("%w: %d of %d trials failed", domain.ErrTotalFailure, res.Failed, res.Total())
	}
	return res, nil
}

// evaluate runs one combination on train then test. A train failure skips the
// test run: the record is Failed either way. ok is false when cancellation
// interrupted either run, in which case the record must be dropped.
func (s *Searcher) evaluate(ctx context.Context, runID string, index int, combo domain.Combination, train, test domain.DateRange) (rec domain.TrialRecord, ok bool) {
	rec = domain.TrialRecord{
		RunID:       runID,
		Index:       index,
		Combination: combo,
		TrainRange:  train,
		TestRange:   test,
		Status:      domain.TrialFailed,
	}

	trainRes := s.runner.Run(ctx, combo, train)
	if trainRes.Interrupted(ctx) {
		return rec, false
	}
	rec.Duration = trainRes.Elapsed
	if !trainRes.OK() {
		rec.Error = trainRes.Err.Error()
		return rec, true
	}
	rec.TrainMetrics = trainRes.Metrics

	testRes := s.runner.Run(ctx, combo, test)
	if testRes.Interrupted(ctx) {
		return rec, false
	}
	rec.Duration += testRes.Elapsed
	if !testRes.OK() {
		rec.Error = testRes.Err.Error()
		return rec, true
	}
	rec.TestMetrics = testRes.Metrics
	rec.Status = domain.TrialSucceeded
	return rec, true
}

func (s *Searcher) persist(ctx context.Context, res *Result) error {
	if s.store == nil || len(res.Records) == 0 {
		return nil
	}
	recs := make([]*domain.TrialRecord, len(res.Records))
	for i := range res.Records {
		recs[i] = &res.Records[i]
	}
	// Partial ledgers of cancelled runs are still written.
	if err := s.store.InsertBulk(context.WithoutCancel(ctx), recs); err != nil {
		return fmt.Errorf("persist ledger %s: %w", res.RunID, err)
	}
	return nil
}

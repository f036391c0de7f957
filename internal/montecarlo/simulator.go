// Package montecarlo bootstraps a realized return series into synthetic equity
// paths and summarizes the distribution of terminal values.
package montecarlo

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/metrics"
	"strategy-validation-lab/internal/storage"
)

// batchSize is the number of simulations handed to one worker at a time.
const batchSize = 64

// Simulator runs bootstrap simulations.
type Simulator struct {
	workers int
	logger  *zap.Logger
	store   storage.MonteCarloStore
	now     func() time.Time
}

// Options for creating a Simulator.
type Options struct {
	Workers int // defaults to NumCPU
	Logger  *zap.Logger

	// Store, when set, receives the summary once the run ends.
	Store storage.MonteCarloStore
}

// New creates a Simulator.
func New(opts Options) *Simulator {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		workers: workers,
		logger:  logger,
		store:   opts.Store,
		now:     time.Now,
	}
}

// Request describes one simulation run.
type Request struct {
	Returns      domain.ReturnSeries
	Simulations  int
	Percentiles  []float64 // each in [0, 1]
	InitialValue float64
	Seed         uint64
	KeepPaths    bool
	RunID        string // generated when empty
}

// Validate checks the request before any path is drawn.
func (r Request) Validate() error {
	if len(r.Returns) == 0 {
		return fmt.Errorf("%w: empty return series", domain.ErrInsufficientData)
	}
	if r.Simulations <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidSimulations, r.Simulations)
	}
	for _, p := range r.Percentiles {
		if !(p >= 0 && p <= 1) {
			return fmt.Errorf("%w: got %v", domain.ErrInvalidPercentile, p)
		}
	}
	if !(r.InitialValue > 0) || math.IsInf(r.InitialValue, 1) {
		return fmt.Errorf("%w: got %v", domain.ErrInvalidInitialValue, r.InitialValue)
	}
	return nil
}

// Simulate draws len(Returns) returns with replacement per simulation and
// compounds them from InitialValue. Values are never clamped, so a path may
// go negative. Simulation i always uses the same random stream for a given
// seed, so the result does not depend on the worker count.
//
// On cancellation the summary covers the batches that completed and is
// returned together with ctx.Err().
func (s *Simulator) Simulate(ctx context.Context, req Request) (*domain.MonteCarloResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := s.logger.With(zap.String("run_id", runID))
	log.Info("monte carlo started",
		zap.Int("simulations", req.Simulations),
		zap.Int("periods", len(req.Returns)),
		zap.Uint64("seed", req.Seed),
	)

	returns := req.Returns.Values()
	terminal := make([]float64, req.Simulations)
	var paths [][]float64
	if req.KeepPaths {
		paths = make([][]float64, req.Simulations)
	}

	batches := (req.Simulations + batchSize - 1) / batchSize
	done := make([]bool, batches)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for b := 0; b < batches; b++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			lo := b * batchSize
			hi := min(lo+batchSize, req.Simulations)
			for i := lo; i < hi; i++ {
				path := simulate(returns, req.InitialValue, req.Seed, i, req.KeepPaths)
				terminal[i] = path[len(path)-1]
				if req.KeepPaths {
					paths[i] = path
				}
			}
			done[b] = true
			return nil
		})
	}
	_ = g.Wait()

	cancelErr := ctx.Err()
	if cancelErr != nil {
		terminal, paths = completed(terminal, paths, done, req.Simulations)
	}

	res := &domain.MonteCarloResult{
		RunID:          runID,
		Simulations:    len(terminal),
		Periods:        len(returns),
		InitialValue:   req.InitialValue,
		Seed:           req.Seed,
		Paths:          paths,
		TerminalValues: terminal,
		CreatedAt:      s.now().UTC(),
	}
	summarize(res, req.Percentiles)

	log.Info("monte carlo finished",
		zap.Int("completed", res.Simulations),
		zap.Float64("mean_terminal", res.MeanTerminal),
		zap.Float64("probability_of_loss", res.ProbabilityOfLoss),
	)

	if s.store != nil && res.Simulations > 0 {
		if err := s.store.Insert(context.WithoutCancel(ctx), res); err != nil {
			return res, fmt.Errorf("persist monte carlo %s: %w", runID, err)
		}
	}
	if cancelErr != nil {
		return res, cancelErr
	}
	return res, nil
}

// simulate draws one path. The returned slice holds only the terminal value
// unless keep is set.
func simulate(returns []float64, initial float64, seed uint64, index int, keep bool) []float64 {
	rng := rand.New(rand.NewPCG(seed, uint64(index)))
	n := len(returns)

	var path []float64
	if keep {
		path = make([]float64, 0, n+1)
		path = append(path, initial)
	}
	v := initial
	for t := 0; t < n; t++ {
		v *= 1 + returns[rng.IntN(n)]
		if keep {
			path = append(path, v)
		}
	}
	if !keep {
		return []float64{v}
	}
	return path
}

// completed keeps the simulations of finished batches, in index order.
func completed(terminal []float64, paths [][]float64, done []bool, total int) ([]float64, [][]float64) {
	var (
		outT []float64
		outP [][]float64
	)
	for b, ok := range done {
		if !ok {
			continue
		}
		lo := b * batchSize
		hi := min(lo+batchSize, total)
		outT = append(outT, terminal[lo:hi]...)
		if paths != nil {
			outP = append(outP, paths[lo:hi]...)
		}
	}
	return outT, outP
}

func summarize(res *domain.MonteCarloResult, percentiles []float64) {
	if len(res.TerminalValues) == 0 {
		return
	}
	res.MeanTerminal = metrics.Mean(res.TerminalValues)

	losses := 0
	for _, v := range res.TerminalValues {
		if v < res.InitialValue {
			losses++
		}
	}
	res.ProbabilityOfLoss = float64(losses) / float64(len(res.TerminalValues))

	values := metrics.Percentiles(res.TerminalValues, percentiles)
	res.Percentiles = make([]domain.PercentileValue, len(percentiles))
	for i, p := range percentiles {
		res.Percentiles[i] = domain.PercentileValue{Percentile: p, Value: values[i]}
	}
}

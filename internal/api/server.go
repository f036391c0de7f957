// Package api exposes the validation engines over HTTP. Runs are accepted
// asynchronously; progress streams over /ws and results are read back from
// the stores.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"strategy-validation-lab/internal/app"
	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/observability"
	"strategy-validation-lab/internal/params"
	"strategy-validation-lab/internal/progress"
	"strategy-validation-lab/internal/reporting"
	"strategy-validation-lab/internal/search"
	"strategy-validation-lab/internal/storage"
	"strategy-validation-lab/internal/walkforward"
)

// Server serves the run API.
type Server struct {
	engine   *app.Engine
	hub      *progress.Hub
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	now      func() time.Time

	runs   *runTable
	ctx    context.Context // parent of every submitted run
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures NewServer.
type Options struct {
	Engine   *app.Engine
	Hub      *progress.Hub        // may be nil; disables /ws
	Gatherer prometheus.Gatherer // may be nil; disables /metrics
	Logger   *zap.Logger
}

// NewServer creates a Server. Call Shutdown to cancel and wait for runs.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		engine:   opts.Engine,
		hub:      opts.Hub,
		gatherer: opts.Gatherer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		runs:     newRunTable(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(observability.Handler(s.gatherer)))
	}
	if s.hub != nil {
		r.GET("/ws", gin.WrapH(s.hub))
	}

	runs := r.Group("/runs")
	runs.GET("", s.listRuns)
	runs.POST("/search", s.submitSearch)
	runs.POST("/walkforward", s.submitWalkForward)
	runs.POST("/montecarlo", s.submitMonteCarlo)
	runs.GET("/:id", s.getRun)
	runs.GET("/:id/trials", s.getTrials)
	runs.GET("/:id/walkforward", s.getWalkForward)
	runs.GET("/:id/montecarlo", s.getMonteCarlo)
	runs.GET("/:id/report", s.getReport)
	return r
}

// Shutdown cancels running work and waits for it to stop or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every submitted run has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// launch starts fn in the background under runID.
func (s *Server) launch(runID, kind string, fn func(ctx context.Context) error) {
	s.runs.start(runID, kind, s.now())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := fn(s.ctx)
		s.runs.finish(runID, err, s.now())
	}()
}

type searchBody struct {
	From          string          `json:"from" binding:"required"`
	To            string          `json:"to" binding:"required"`
	Space         json.RawMessage `json:"space" binding:"required"`
	Method        string          `json:"method"`
	Objective     string          `json:"objective"`
	TrainFraction float64         `json:"train_fraction"`
	Iterations    int             `json:"iterations"`
	Seed          uint64          `json:"seed"`
}

func (s *Server) submitSearch(c *gin.Context) {
	var body searchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	r, err := domain.ParseDateRange(body.From, body.To)
	if err != nil {
		badRequest(c, err)
		return
	}
	space, err := params.ParseSpace(body.Space)
	if err != nil {
		badRequest(c, err)
		return
	}

	req := s.engine.SearchRequest(space, r)
	req.RunID = uuid.New().String()
	if body.Objective != "" {
		req.Objective = domain.Objective(body.Objective)
	}
	if _, err := domain.ParseObjective(string(req.Objective)); err != nil {
		badRequest(c, err)
		return
	}
	if body.TrainFraction != 0 {
		req.TrainFraction = body.TrainFraction
	}
	if body.Iterations != 0 {
		req.Iterations = body.Iterations
	}
	if body.Seed != 0 {
		req.Seed = body.Seed
	}
	method, err := resolveMethod(s.engine.Config.Search.Method, body.Method)
	if err != nil {
		badRequest(c, err)
		return
	}

	s.launch(req.RunID, KindSearch, func(ctx context.Context) error {
		_, err := s.engine.Search(ctx, method, req)
		return err
	})
	c.JSON(http.StatusAccepted, gin.H{"run_id": req.RunID, "kind": KindSearch})
}

type walkForwardBody struct {
	From      string          `json:"from" binding:"required"`
	To        string          `json:"to" binding:"required"`
	TrainDays int             `json:"train_days"`
	TestDays  int             `json:"test_days"`
	Anchored  bool            `json:"anchored"`
	Objective string          `json:"objective"`
	Space     json.RawMessage `json:"space"` // optional; searched on each train window
	Method    string          `json:"method"`
}

func (s *Server) submitWalkForward(c *gin.Context) {
	var body walkForwardBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	r, err := domain.ParseDateRange(body.From, body.To)
	if err != nil {
		badRequest(c, err)
		return
	}

	cfg := s.engine.Config
	objective := domain.Objective(cfg.Engine.Objective)
	if body.Objective != "" {
		objective = domain.Objective(body.Objective)
	}
	if _, err := domain.ParseObjective(string(objective)); err != nil {
		badRequest(c, err)
		return
	}
	spec := walkforward.WindowSpec{
		TrainDays: cfg.WalkForward.TrainDays,
		TestDays:  cfg.WalkForward.TestDays,
		Anchored:  cfg.WalkForward.Anchored || body.Anchored,
	}
	if body.TrainDays != 0 {
		spec.TrainDays = body.TrainDays
	}
	if body.TestDays != 0 {
		spec.TestDays = body.TestDays
	}
	if _, _, err := walkforward.Windows(r, spec); err != nil {
		badRequest(c, err)
		return
	}

	var selector walkforward.Selector = walkforward.Fixed{}
	if len(body.Space) > 0 {
		space, err := params.ParseSpace(body.Space)
		if err != nil {
			badRequest(c, err)
			return
		}
		method, err := resolveMethod(cfg.Search.Method, body.Method)
		if err != nil {
			badRequest(c, err)
			return
		}
		sel := walkforward.SearchSelector{
			Searcher:      s.engine.Searcher,
			Method:        method,
			Space:         space,
			Objective:     objective,
			TrainFraction: cfg.Search.TrainFraction,
			Iterations:    cfg.Search.Iterations,
			Seed:          cfg.Engine.Seed,
		}
		if err := sel.Validate(spec); err != nil {
			badRequest(c, err)
			return
		}
		selector = sel
	}

	req := walkforward.Request{Range: r, Spec: spec, Objective: objective, RunID: uuid.New().String()}
	s.launch(req.RunID, KindWalkForward, func(ctx context.Context) error {
		_, err := s.engine.WalkForward(ctx, selector, req)
		return err
	})
	c.JSON(http.StatusAccepted, gin.H{"run_id": req.RunID, "kind": KindWalkForward})
}

type monteCarloBody struct {
	From        string `json:"from" binding:"required"`
	To          string `json:"to" binding:"required"`
	SearchRun   string `json:"search_run"` // apply this run's best combination
	Objective   string `json:"objective"`
	Simulations int    `json:"simulations"`
	Seed        uint64 `json:"seed"`
}

func (s *Server) submitMonteCarlo(c *gin.Context) {
	var body monteCarloBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	r, err := domain.ParseDateRange(body.From, body.To)
	if err != nil {
		badRequest(c, err)
		return
	}

	combo := domain.Combination{}
	if body.SearchRun != "" {
		objective := domain.Objective(s.engine.Config.Engine.Objective)
		if body.Objective != "" {
			objective = domain.Objective(body.Objective)
		}
		combo, err = s.engine.BestCombination(c.Request.Context(), body.SearchRun, objective)
		if err != nil {
			writeError(c, err)
			return
		}
	}

	runID := uuid.New().String()
	s.launch(runID, KindMonteCarlo, func(ctx context.Context) error {
		returns, err := s.engine.Returns(ctx, combo, r)
		if err != nil {
			return err
		}
		req := s.engine.MonteCarloRequest(returns)
		req.RunID = runID
		// Paths are never served.
		req.KeepPaths = false
		if body.Simulations != 0 {
			req.Simulations = body.Simulations
		}
		if body.Seed != 0 {
			req.Seed = body.Seed
		}
		_, err = s.engine.MonteCarlo(ctx, req)
		return err
	})
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "kind": KindMonteCarlo})
}

type storedRun struct {
	RunID     string `json:"run_id"`
	Trials    int    `json:"trials"`
	Succeeded int    `json:"succeeded"`
}

func (s *Server) listRuns(c *gin.Context) {
	infos, err := s.engine.Stores.Trials.ListRuns(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	stored := make([]storedRun, len(infos))
	for i, info := range infos {
		stored[i] = storedRun{RunID: info.RunID, Trials: info.Trials, Succeeded: info.Succeeded}
	}
	c.JSON(http.StatusOK, gin.H{"submitted": s.runs.list(), "searches": stored})
}

func (s *Server) getRun(c *gin.Context) {
	rs, ok := s.runs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, rs)
}

type trialView struct {
	Index        int              `json:"index"`
	Combination  string           `json:"combination"`
	Status       string           `json:"status"`
	TrainRange   domain.DateRange `json:"train_range"`
	TestRange    domain.DateRange `json:"test_range"`
	TrainMetrics domain.MetricSet `json:"train_metrics"`
	TestMetrics  domain.MetricSet `json:"test_metrics"`
	Error        string           `json:"error,omitempty"`
	DurationMs   int64            `json:"duration_ms"`
}

func (s *Server) getTrials(c *gin.Context) {
	records, err := s.engine.Stores.Trials.GetByRunID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(records) == 0 {
		writeError(c, storage.ErrNotFound)
		return
	}
	out := make([]trialView, len(records))
	for i, rec := range records {
		out[i] = trialView{
			Index:        rec.Index,
			Combination:  rec.Combination.Key(),
			Status:       string(rec.Status),
			TrainRange:   rec.TrainRange,
			TestRange:    rec.TestRange,
			TrainMetrics: rec.TrainMetrics,
			TestMetrics:  rec.TestMetrics,
			Error:        rec.Error,
			DurationMs:   rec.Duration.Milliseconds(),
		}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": c.Param("id"), "trials": out})
}

func (s *Server) getWalkForward(c *gin.Context) {
	res, err := s.engine.Stores.WalkForward.GetByRunID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getMonteCarlo(c *gin.Context) {
	res, err := s.engine.Stores.MonteCarlo.GetByRunID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// getReport renders a markdown report for a search run. Query parameters
// walkforward and montecarlo add stored runs; objective overrides the default.
func (s *Server) getReport(c *gin.Context) {
	objective := c.DefaultQuery("objective", s.engine.Config.Engine.Objective)
	gen := reporting.NewGenerator(s.engine.Stores.Trials, s.engine.Stores.WalkForward, s.engine.Stores.MonteCarlo).
		WithClock(s.now)
	report, err := gen.Generate(c.Request.Context(), reporting.Request{
		SearchRunID:      c.Param("id"),
		Objective:        domain.Objective(objective),
		WalkForwardRunID: c.Query("walkforward"),
		MonteCarloRunID:  c.Query("montecarlo"),
		TopN:             s.engine.Config.Search.TopN,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(reporting.RenderMarkdown(report)))
}

// resolveMethod prefers the requested method over the configured default.
func resolveMethod(configured, requested string) (search.Method, error) {
	if requested != "" {
		return search.ParseMethod(requested)
	}
	return search.ParseMethod(configured)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// writeError maps storage and usage errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case domain.IsUsage(err), errors.Is(err, storage.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTotalFailure):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

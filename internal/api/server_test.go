package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-validation-lab/internal/app"
	"strategy-validation-lab/internal/config"
	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/observability"
	"strategy-validation-lab/internal/params"
	"strategy-validation-lab/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	bars := memory.NewBarStore()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]domain.Bar, 91)
	for i := range series {
		c := 100 + 5*math.Sin(float64(i)/4) + 0.1*float64(i)
		series[i] = domain.Bar{Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 10}
	}
	require.NoError(t, bars.WriteBars(context.Background(), "SPY", series))

	cfg := config.Default()
	cfg.Engine.Workers = 2
	cfg.MonteCarlo.Simulations = 100

	reg := prometheus.NewRegistry()
	engine := app.NewEngine(app.EngineOptions{
		Config: cfg,
		Stores: &app.Stores{
			Trials:      memory.NewTrialRecordStore(),
			WalkForward: memory.NewWalkForwardStore(),
			MonteCarlo:  memory.NewMonteCarloStore(),
			Bars:        bars,
		},
		Base: params.Tree{
			"symbol":   "SPY",
			"signal":   map[string]any{"fast": 2, "slow": 5},
			"position": map[string]any{"size": 1.0},
			"costs":    map[string]any{"commission_bps": 0.0, "fixed_fee": 0.0},
		},
		Metrics: observability.NewMetrics(reg, "test"),
	})

	srv := NewServer(Options{Engine: engine, Gatherer: reg})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, srv.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func submit(t *testing.T, h http.Handler, path, body string) string {
	t.Helper()
	w := do(t, h, http.MethodPost, path, body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	return resp.RunID
}

func TestHealth(t *testing.T) {
	_, h := testServer(t)
	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSearchRun_Lifecycle(t *testing.T) {
	srv, h := testServer(t)

	runID := submit(t, h, "/runs/search", `{
		"from": "2024-01-01", "to": "2024-03-31",
		"space": {"parameters": [{"name": "signal.fast", "values": [2, 3]}, {"name": "signal.slow", "values": [6]}]},
		"objective": "total_return"
	}`)
	srv.Wait()

	w := do(t, h, http.MethodGet, "/runs/"+runID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var status RunStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StateFinished, status.State)
	assert.Equal(t, KindSearch, status.Kind)
	assert.NotNil(t, status.FinishedAt)

	w = do(t, h, http.MethodGet, "/runs/"+runID+"/trials", "")
	require.Equal(t, http.StatusOK, w.Code)
	var trials struct {
		Trials []trialView `json:"trials"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trials))
	require.Len(t, trials.Trials, 2)
	assert.Equal(t, "signal.fast=2,signal.slow=6", trials.Trials[0].Combination)

	w = do(t, h, http.MethodGet, "/runs/"+runID+"/report?objective=total_return", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# Strategy Validation Report")
	assert.Contains(t, w.Body.String(), runID)

	w = do(t, h, http.MethodGet, "/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"`+runID+`","trials":2`)

	w = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_search_trials_total{status="succeeded"} 2`)
}

func TestSearchRun_RejectsBadInput(t *testing.T) {
	_, h := testServer(t)

	cases := map[string]string{
		"missing range":     `{"space": {"parameters": [{"name": "signal.fast", "values": [2]}]}}`,
		"unknown objective": `{"from": "2024-01-01", "to": "2024-03-31", "objective": "alpha", "space": {"parameters": [{"name": "signal.fast", "values": [2]}]}}`,
		"empty values":      `{"from": "2024-01-01", "to": "2024-03-31", "space": {"parameters": [{"name": "signal.fast", "values": []}]}}`,
		"inverted range":    `{"from": "2024-03-31", "to": "2024-01-01", "space": {"parameters": [{"name": "signal.fast", "values": [2]}]}}`,
		"malformed":         `{"from":`,
		"unknown method":    `{"from": "2024-01-01", "to": "2024-03-31", "method": "annealing", "space": {"parameters": [{"name": "signal.fast", "values": [2]}]}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/runs/search", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestWalkForwardAndMonteCarloRuns(t *testing.T) {
	srv, h := testServer(t)

	wfID := submit(t, h, "/runs/walkforward", `{"from": "2024-01-01", "to": "2024-03-31", "train_days": 30, "test_days": 15}`)
	mcID := submit(t, h, "/runs/montecarlo", `{"from": "2024-01-01", "to": "2024-03-31", "simulations": 50}`)
	srv.Wait()

	w := do(t, h, http.MethodGet, "/runs/"+wfID+"/walkforward", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var wf domain.WalkForwardResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wf))
	assert.Len(t, wf.Windows, 4)

	w = do(t, h, http.MethodGet, "/runs/"+mcID+"/montecarlo", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var mc domain.MonteCarloResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mc))
	assert.Equal(t, 50, mc.Simulations)
	assert.Len(t, mc.TerminalValues, 50)

	w = do(t, h, http.MethodPost, "/runs/walkforward", `{"from": "2024-01-01", "to": "2024-01-20", "train_days": 30, "test_days": 15}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWalkForwardRun_RejectsBadSearch(t *testing.T) {
	srv, h := testServer(t)

	cases := map[string]string{
		"unknown method":         `{"from": "2024-01-01", "to": "2024-03-31", "train_days": 30, "test_days": 15, "method": "annealing", "space": {"parameters": [{"name": "signal.fast", "values": [2]}]}}`,
		"train window too short": `{"from": "2024-01-01", "to": "2024-03-31", "train_days": 3, "test_days": 15, "space": {"parameters": [{"name": "signal.fast", "values": [2]}]}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/runs/walkforward", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	srv.Wait()
	assert.Empty(t, srv.runs.list())
}

func TestMonteCarlo_UnknownSearchRun(t *testing.T) {
	_, h := testServer(t)
	w := do(t, h, http.MethodPost, "/runs/montecarlo", `{"from": "2024-01-01", "to": "2024-03-31", "search_run": "missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownRuns(t *testing.T) {
	_, h := testServer(t)
	for _, path := range []string{
		"/runs/missing",
		"/runs/missing/trials",
		"/runs/missing/walkforward",
		"/runs/missing/montecarlo",
		"/runs/missing/report",
	} {
		w := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestRunTable_FailedRun(t *testing.T) {
	table := newRunTable()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table.start("a", KindSearch, t0)
	table.start("b", KindMonteCarlo, t0.Add(time.Second))
	table.finish("a", domain.ErrTotalFailure, t0.Add(2*time.Second))
	table.finish("unknown", nil, t0)

	a, ok := table.get("a")
	require.True(t, ok)
	assert.Equal(t, StateFailed, a.State)
	assert.Equal(t, domain.ErrTotalFailure.Error(), a.Error)

	list := table.list()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].RunID)
	assert.Equal(t, StateRunning, list[0].State)
}

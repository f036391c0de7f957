package reporting

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
	"strategy-validation-lab/internal/storage/memory"
)

func mustRange(t *testing.T, start, end string) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange(start, end)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func testTrials(t *testing.T) []domain.TrialRecord {
	train := mustRange(t, "2023-01-01", "2023-09-30")
	test := mustRange(t, "2023-10-01", "2023-12-31")
	combo := func(fast int) domain.Combination {
		return domain.NewCombination(
			domain.Assignment{Path: "signal.fast", Value: fast},
			domain.Assignment{Path: "signal.slow", Value: 20},
		)
	}
	return []domain.TrialRecord{
		{
			RunID: "run-1", Index: 0, Combination: combo(5),
			TrainRange: train, TestRange: test,
			TrainMetrics: domain.MetricSet{Sharpe: 1.5, TotalReturn: 0.2},
			TestMetrics:  domain.MetricSet{Sharpe: 0.8, TotalReturn: 0.05, Periods: 63},
			Status:       domain.TrialSucceeded,
		},
		{
			RunID: "run-1", Index: 1, Combination: combo(10),
			TrainRange: train, TestRange: test,
			TrainMetrics: domain.MetricSet{Sharpe: 2.0},
			TestMetrics:  domain.MetricSet{Sharpe: 0.3},
			Status:       domain.TrialSucceeded,
		},
		{
			RunID: "run-1", Index: 2, Combination: combo(15),
			TrainRange: train, TestRange: test,
			Status: domain.TrialFailed,
			Error:  "no bars",
		},
	}
}

func testWalkForward(t *testing.T) *domain.WalkForwardResult {
	discarded := mustRange(t, "2023-12-28", "2023-12-31")
	return &domain.WalkForwardResult{
		RunID:     "wf-1",
		Objective: domain.ObjectiveSharpe,
		Range:     mustRange(t, "2023-01-01", "2023-12-31"),
		TrainDays: 90,
		TestDays:  30,
		Windows: []domain.WindowResult{{
			Window: domain.WalkForwardWindow{
				Index:      0,
				TrainRange: mustRange(t, "2023-01-01", "2023-03-31"),
				TestRange:  mustRange(t, "2023-04-01", "2023-04-30"),
			},
			Combination: domain.NewCombination(domain.Assignment{Path: "signal.fast", Value: 5}),
			TrainMetric: 1.0,
			TestMetric:  0.6,
			Status:      domain.WindowSucceeded,
		}},
		Succeeded:   1,
		Efficiency:  0.6,
		Consistency: 0.75,
		Verdict:     domain.WalkForwardAcceptable,
		Discarded:   &discarded,
	}
}

func testMonteCarlo(probLoss float64) *domain.MonteCarloResult {
	return &domain.MonteCarloResult{
		RunID:             "mc-1",
		Simulations:       1000,
		Periods:           252,
		InitialValue:      100,
		MeanTerminal:      112,
		ProbabilityOfLoss: probLoss,
		Percentiles: []domain.PercentileValue{
			{Percentile: 0.05, Value: 90},
			{Percentile: 0.5, Value: 111},
		},
	}
}

func TestBuild_AllSections(t *testing.T) {
	in := Input{
		SearchRunID: "run-1",
		Objective:   domain.ObjectiveSharpe,
		Trials:      testTrials(t),
		WalkForward: testWalkForward(t),
		MonteCarlo:  testMonteCarlo(0.2),
	}
	generated := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	r, err := Build(in, generated)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if r.Search == nil || r.Search.Trials != 3 || r.Search.Succeeded != 2 || r.Search.Failed != 1 {
		t.Fatalf("unexpected search section: %+v", r.Search)
	}
	if len(r.Search.Top) != 2 || r.Search.Top[0].Index != 0 {
		t.Errorf("expected trial 0 ranked first, got %+v", r.Search.Top)
	}
	if len(r.Search.Failures) != 1 || r.Search.Failures[0].Error != "no bars" {
		t.Errorf("unexpected failures: %+v", r.Search.Failures)
	}

	if r.Overfit == nil {
		t.Fatal("expected overfit score")
	}
	if math.Abs(r.Overfit.Efficiency-0.8/1.5) > 1e-9 {
		t.Errorf("expected efficiency 0.5333, got %v", r.Overfit.Efficiency)
	}
	if r.Overfit.PBO != 0.4 || r.Overfit.Verdict != domain.VerdictAcceptable || r.Overfit.NTrials != 3 {
		t.Errorf("unexpected overfit score: %+v", *r.Overfit)
	}

	if len(r.Checks) != 5 {
		t.Fatalf("expected 5 checks, got %d", len(r.Checks))
	}
	if r.Outcome != OutcomePass {
		t.Errorf("expected PASS, got %s", r.Outcome)
	}
}

func TestBuild_FailingCheck(t *testing.T) {
	r, err := Build(Input{MonteCarlo: testMonteCarlo(0.7)}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome != OutcomeFail {
		t.Errorf("expected FAIL, got %s", r.Outcome)
	}
	if len(r.Checks) != 1 || r.Checks[0].Pass {
		t.Errorf("unexpected checks: %+v", r.Checks)
	}
}

func TestBuild_EmptyAndInvalid(t *testing.T) {
	r, err := Build(Input{}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome != OutcomeIncomplete || r.Search != nil || r.Overfit != nil {
		t.Errorf("expected an empty incomplete report, got %+v", r)
	}

	_, err = Build(Input{Trials: testTrials(t), Objective: "alpha"}, time.Now())
	if !errors.Is(err, domain.ErrUnknownObjective) {
		t.Errorf("expected ErrUnknownObjective, got %v", err)
	}
}

func TestBuild_AllTrialsFailed(t *testing.T) {
	trials := testTrials(t)[2:]
	r, err := Build(Input{Trials: trials, Objective: domain.ObjectiveSharpe}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if r.Overfit != nil {
		t.Error("expected no overfit score without a succeeded trial")
	}
	if r.Outcome != OutcomeFail {
		t.Errorf("expected FAIL, got %s", r.Outcome)
	}
}

func TestGenerator_FromStores(t *testing.T) {
	ctx := context.Background()
	trialStore := memory.NewTrialRecordStore()
	wfStore := memory.NewWalkForwardStore()
	mcStore := memory.NewMonteCarloStore()

	var records []*domain.TrialRecord
	for _, rec := range testTrials(t) {
		records = append(records, &rec)
	}
	if err := trialStore.InsertBulk(ctx, records); err != nil {
		t.Fatal(err)
	}
	if err := wfStore.Insert(ctx, testWalkForward(t)); err != nil {
		t.Fatal(err)
	}
	if err := mcStore.Insert(ctx, testMonteCarlo(0.1)); err != nil {
		t.Fatal(err)
	}

	fixed := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator(trialStore, wfStore, mcStore).WithClock(func() time.Time { return fixed })

	r, err := gen.Generate(ctx, Request{
		SearchRunID:      "run-1",
		Objective:        domain.ObjectiveSharpe,
		WalkForwardRunID: "wf-1",
		MonteCarloRunID:  "mc-1",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !r.GeneratedAt.Equal(fixed) {
		t.Errorf("expected injected clock, got %v", r.GeneratedAt)
	}
	if r.Search == nil || r.WalkForward == nil || r.MonteCarlo == nil {
		t.Fatal("expected every section")
	}

	md := RenderMarkdown(r)
	for _, want := range []string{
		"# Strategy Validation Report",
		"Generated: 2024-02-01T12:00:00Z",
		"## Outcome: PASS",
		"signal.fast=5,signal.slow=20",
		"| 0.5333 | 0.40 | acceptable |",
		"Discarded trailing range: 2023-12-28..2023-12-31.",
		"| P50 | 111.00 |",
		"- #2 signal.fast=15,signal.slow=20: no bars",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	_, err = gen.Generate(ctx, Request{SearchRunID: "missing", Objective: domain.ObjectiveSharpe})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = NewGenerator(nil, nil, nil).Generate(ctx, Request{MonteCarloRunID: "mc-1"})
	if !errors.Is(err, domain.ErrUsage) {
		t.Errorf("expected ErrUsage, got %v", err)
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := RenderTrialsCSV(testTrials(t))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], `run-1,0,"signal.fast=5,signal.slow=20",succeeded,2023-01-01,2023-09-30,`) {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if !strings.HasSuffix(lines[3], ",no bars") {
		t.Errorf("expected error column, got %q", lines[3])
	}

	out, err = RenderWindowsCSV(testWalkForward(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "wf-1,0,2023-01-01,2023-03-31,2023-04-01,2023-04-30,signal.fast=5,1.000000,0.600000,succeeded,") {
		t.Errorf("unexpected windows csv:\n%s", out)
	}
}

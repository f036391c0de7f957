package domain

import "time"

// WalkForwardWindow is one rolling (train, test) pair.
type WalkForwardWindow struct {
	Index      int
	TrainRange DateRange
	TestRange  DateRange
}

// WindowStatus is the outcome of one window evaluation.
type WindowStatus string

// Window statuses.
const (
	WindowSucceeded WindowStatus = "succeeded"
	WindowOmitted   WindowStatus = "omitted"
)

// WindowResult is one row of the walk-forward table.
type WindowResult struct {
	Window       WalkForwardWindow
	Combination  Combination
	TrainMetric  float64 // objective on the train range
	TestMetric   float64 // objective on the test range
	TrainMetrics MetricSet
	TestMetrics  MetricSet
	Status       WindowStatus
	Error        string // omission reason
}

// WalkForwardVerdict is the advisory reading of a walk-forward run.
type WalkForwardVerdict string

// Walk-forward verdicts.
const (
	WalkForwardRobust        WalkForwardVerdict = "robust"
	WalkForwardAcceptable    WalkForwardVerdict = "acceptable"
	WalkForwardNeedsRevision WalkForwardVerdict = "needs_revision"
)

// WalkForwardResult holds the per-window table and its aggregate statistics.
type WalkForwardResult struct {
	RunID     string
	Objective Objective
	Range     DateRange
	TrainDays int
	TestDays  int
	Anchored  bool

	Windows   []WindowResult // ordered by window index
	Succeeded int
	Omitted   int

	Efficiency  float64 // mean(test) / mean(train)
	Consistency float64 // fraction of windows with test metric > 0
	MeanTrain   float64
	MeanTest    float64
	StdTest     float64
	Verdict     WalkForwardVerdict

	StartedAt  time.Time
	FinishedAt time.Time

	// Discarded is the trailing range too short for a full test window, if any.
	Discarded *DateRange
}

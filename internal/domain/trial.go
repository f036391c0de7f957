package domain

import "time"

// TrialStatus is the outcome of one trial.
type TrialStatus string

// Trial statuses.
const (
	TrialSucceeded TrialStatus = "succeeded"
	TrialFailed    TrialStatus = "failed"
)

// TrialRecord is one evaluated combination of a search run.
// Built completely before it is appended to a ledger and never modified afterwards.
type TrialRecord struct {
	RunID       string
	Index       int // enumeration order within the run
	Combination Combination

	TrainRange   DateRange
	TestRange    DateRange
	TrainMetrics MetricSet
	TestMetrics  MetricSet

	Status   TrialStatus
	Error    string // empty unless Status == TrialFailed
	Duration time.Duration
}

// Succeeded reports whether the trial completed on both ranges.
func (r TrialRecord) Succeeded() bool {
	return r.Status == TrialSucceeded
}

// OverfitVerdict classifies how much out-of-sample performance decays.
type OverfitVerdict string

// Overfit verdicts, best first.
const (
	VerdictRobust          OverfitVerdict = "robust"
	VerdictAcceptable      OverfitVerdict = "acceptable"
	VerdictModerateOverfit OverfitVerdict = "moderate_overfit"
	VerdictHighOverfit     OverfitVerdict = "high_overfit"
)

// Rank orders verdicts: lower is better.
func (v OverfitVerdict) Rank() int {
	switch v {
	case VerdictRobust:
		return 0
	case VerdictAcceptable:
		return 1
	case VerdictModerateOverfit:
		return 2
	default:
		return 3
	}
}

// OverfitScore is a heuristic overfitting classification. PBO here is a lookup
// on efficiency, not a calibrated probability.
type OverfitScore struct {
	InSample   float64
	OutSample  float64
	Efficiency float64
	PBO        float64
	Verdict    OverfitVerdict
	NTrials    int // recorded for auditing; does not alter the thresholds
}

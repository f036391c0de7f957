// Package reporting assembles search, overfit, walk-forward and Monte Carlo
// results into a validation report and renders it as Markdown or CSV.
package reporting

import (
	"time"

	"strategy-validation-lab/internal/domain"
)

// Report is the assembled validation report. Sections are nil when the
// corresponding run was not supplied.
type Report struct {
	GeneratedAt time.Time

	Search      *SearchSection
	Overfit     *domain.OverfitScore
	WalkForward *domain.WalkForwardResult
	MonteCarlo  *MonteCarloSection

	// Checks is the validation checklist over the supplied sections.
	Checks  []CheckRow
	Outcome Outcome
}

// SearchSection summarizes one search run.
type SearchSection struct {
	RunID      string
	Objective  domain.Objective
	TrainRange domain.DateRange
	TestRange  domain.DateRange
	Trials     int
	Succeeded  int
	Failed     int

	// Top ranks succeeded trials by test objective.
	Top []TrialRow
	// Failures lists failed trials in index order.
	Failures []TrialRow
}

// TrialRow represents one row in the trials table.
type TrialRow struct {
	Index          int
	Combination    string
	TrainObjective float64
	TestObjective  float64
	TestMetrics    domain.MetricSet
	Error          string
}

// MonteCarloSection summarizes a Monte Carlo run.
type MonteCarloSection struct {
	RunID             string
	Simulations       int
	Periods           int
	InitialValue      float64
	MeanTerminal      float64
	ProbabilityOfLoss float64
	Percentiles       []domain.PercentileValue
}

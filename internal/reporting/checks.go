package reporting

import (
	"fmt"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/walkforward"
)

// Outcome is the overall reading of the checklist.
type Outcome string

const (
	OutcomePass       Outcome = "PASS"
	OutcomeFail       Outcome = "FAIL"
	OutcomeIncomplete Outcome = "INCOMPLETE"
)

// CheckRow represents pass/fail for one criterion.
type CheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// MaxProbabilityOfLoss is the highest Monte Carlo loss probability that passes.
const MaxProbabilityOfLoss = 0.5

// evaluate runs every check whose inputs are present.
// INCOMPLETE when no check could run; FAIL when any check fails.
func evaluate(r *Report) ([]CheckRow, Outcome) {
	var checks []CheckRow

	if r.Search != nil {
		checks = append(checks, CheckRow{
			Name:      "Trials succeeded",
			Threshold: "> 0",
			Actual:    fmt.Sprintf("%d/%d", r.Search.Succeeded, r.Search.Trials),
			Pass:      r.Search.Succeeded > 0,
		})
	}

	if r.Overfit != nil {
		checks = append(checks, CheckRow{
			Name:      "Overfit verdict",
			Threshold: "robust or acceptable",
			Actual:    fmt.Sprintf("%s (efficiency %.4f)", r.Overfit.Verdict, r.Overfit.Efficiency),
			Pass:      r.Overfit.Verdict.Rank() <= domain.VerdictAcceptable.Rank(),
		})
	}

	if wf := r.WalkForward; wf != nil {
		checks = append(checks,
			CheckRow{
				Name:      "Walk-forward efficiency",
				Threshold: fmt.Sprintf(">= %.2f", walkforward.AcceptableThreshold),
				Actual:    fmt.Sprintf("%.4f", wf.Efficiency),
				Pass:      wf.Efficiency >= walkforward.AcceptableThreshold,
			},
			CheckRow{
				Name:      "Walk-forward consistency",
				Threshold: fmt.Sprintf(">= %.2f", walkforward.AcceptableThreshold),
				Actual:    fmt.Sprintf("%.4f", wf.Consistency),
				Pass:      wf.Consistency >= walkforward.AcceptableThreshold,
			},
		)
	}

	if mc := r.MonteCarlo; mc != nil {
		checks = append(checks, CheckRow{
			Name:      "Monte Carlo probability of loss",
			Threshold: fmt.Sprintf("<= %.2f", MaxProbabilityOfLoss),
			Actual:    fmt.Sprintf("%.4f", mc.ProbabilityOfLoss),
			Pass:      mc.ProbabilityOfLoss <= MaxProbabilityOfLoss,
		})
	}

	if len(checks) == 0 {
		return nil, OutcomeIncomplete
	}
	for _, c := range checks {
		if !c.Pass {
			return checks, OutcomeFail
		}
	}
	return checks, OutcomePass
}

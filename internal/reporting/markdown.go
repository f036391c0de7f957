package reporting

import (
	"fmt"
	"strings"
	"time"

	"strategy-validation-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Strategy Validation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("## Outcome: %s\n\n", r.Outcome))

	renderChecks(&sb, r.Checks)
	renderSearch(&sb, r.Search)
	renderOverfit(&sb, r.Overfit)
	renderWalkForward(&sb, r.WalkForward)
	renderMonteCarlo(&sb, r.MonteCarlo)

	return sb.String()
}

func renderChecks(sb *strings.Builder, checks []CheckRow) {
	sb.WriteString("## Checklist\n\n")
	if len(checks) == 0 {
		sb.WriteString("No runs supplied.\n\n")
		return
	}
	sb.WriteString("| # | Check | Threshold | Actual | Status |\n")
	sb.WriteString("|---|-------|-----------|--------|--------|\n")
	passed := 0
	for i, c := range checks {
		status := "FAIL"
		if c.Pass {
			status = "PASS"
			passed++
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n", i+1, c.Name, c.Threshold, c.Actual, status))
	}
	sb.WriteString(fmt.Sprintf("\nChecks: %d/%d passed\n\n", passed, len(checks)))
}

func renderSearch(sb *strings.Builder, s *SearchSection) {
	if s == nil {
		return
	}
	sb.WriteString("## Parameter Search\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run | %s |\n", s.RunID))
	sb.WriteString(fmt.Sprintf("| Objective | %s |\n", s.Objective))
	sb.WriteString(fmt.Sprintf("| Train Range | %s |\n", s.TrainRange))
	sb.WriteString(fmt.Sprintf("| Test Range | %s |\n", s.TestRange))
	sb.WriteString(fmt.Sprintf("| Trials | %d |\n", s.Trials))
	sb.WriteString(fmt.Sprintf("| Succeeded | %d |\n", s.Succeeded))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", s.Failed))
	sb.WriteString("\n")

	sb.WriteString("### Top Trials\n\n")
	if len(s.Top) > 0 {
		sb.WriteString("| Rank | Trial | Combination | Train | Test | Return | MaxDD | Periods |\n")
		sb.WriteString("|------|-------|-------------|-------|------|--------|-------|---------|\n")
		for i, t := range s.Top {
			sb.WriteString(fmt.Sprintf("| %d | %d | %s | %.4f | %.4f | %.4f | %.4f | %d |\n",
				i+1, t.Index, t.Combination, t.TrainObjective, t.TestObjective,
				t.TestMetrics.TotalReturn, t.TestMetrics.MaxDrawdown, t.TestMetrics.Periods))
		}
	} else {
		sb.WriteString("No trial succeeded.\n")
	}
	sb.WriteString("\n")

	if len(s.Failures) > 0 {
		sb.WriteString("### Failed Trials\n\n")
		for _, t := range s.Failures {
			sb.WriteString(fmt.Sprintf("- #%d %s: %s\n", t.Index, t.Combination, t.Error))
		}
		sb.WriteString("\n")
	}
}

func renderOverfit(sb *strings.Builder, o *domain.OverfitScore) {
	if o == nil {
		return
	}
	sb.WriteString("## Overfitting\n\n")
	sb.WriteString("| In-Sample | Out-of-Sample | Efficiency | PBO | Verdict | Trials |\n")
	sb.WriteString("|-----------|---------------|------------|-----|---------|--------|\n")
	sb.WriteString(fmt.Sprintf("| %.4f | %.4f | %.4f | %.2f | %s | %d |\n\n",
		o.InSample, o.OutSample, o.Efficiency, o.PBO, o.Verdict, o.NTrials))
	sb.WriteString("PBO is a heuristic lookup on efficiency, not a calibrated probability.\n\n")
}

func renderWalkForward(sb *strings.Builder, wf *domain.WalkForwardResult) {
	if wf == nil {
		return
	}
	sb.WriteString("## Walk-Forward\n\n")
	mode := "rolling"
	if wf.Anchored {
		mode = "anchored"
	}
	sb.WriteString(fmt.Sprintf("Run %s over %s, %s windows of %d/%d days, objective %s.\n\n",
		wf.RunID, wf.Range, mode, wf.TrainDays, wf.TestDays, wf.Objective))

	sb.WriteString("| Window | Train | Test | Combination | Train Metric | Test Metric | Status |\n")
	sb.WriteString("|--------|-------|------|-------------|--------------|-------------|--------|\n")
	for _, w := range wf.Windows {
		status := string(w.Status)
		if w.Status == domain.WindowOmitted && w.Error != "" {
			status += ": " + w.Error
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %.4f | %.4f | %s |\n",
			w.Window.Index, w.Window.TrainRange, w.Window.TestRange, w.Combination.Key(),
			w.TrainMetric, w.TestMetric, status))
	}
	sb.WriteString("\n")

	sb.WriteString("| Efficiency | Consistency | Mean Train | Mean Test | Std Test | Verdict |\n")
	sb.WriteString("|------------|-------------|------------|-----------|----------|---------|\n")
	sb.WriteString(fmt.Sprintf("| %.4f | %.4f | %.4f | %.4f | %.4f | %s |\n\n",
		wf.Efficiency, wf.Consistency, wf.MeanTrain, wf.MeanTest, wf.StdTest, wf.Verdict))

	sb.WriteString(fmt.Sprintf("Windows: %d succeeded, %d omitted.\n", wf.Succeeded, wf.Omitted))
	if wf.Discarded != nil {
		sb.WriteString(fmt.Sprintf("Discarded trailing range: %s.\n", *wf.Discarded))
	}
	sb.WriteString("\n")
}

func renderMonteCarlo(sb *strings.Builder, mc *MonteCarloSection) {
	if mc == nil {
		return
	}
	sb.WriteString("## Monte Carlo\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run | %s |\n", mc.RunID))
	sb.WriteString(fmt.Sprintf("| Simulations | %d |\n", mc.Simulations))
	sb.WriteString(fmt.Sprintf("| Periods | %d |\n", mc.Periods))
	sb.WriteString(fmt.Sprintf("| Initial Value | %.2f |\n", mc.InitialValue))
	sb.WriteString(fmt.Sprintf("| Mean Terminal | %.2f |\n", mc.MeanTerminal))
	sb.WriteString(fmt.Sprintf("| Probability of Loss | %.4f |\n", mc.ProbabilityOfLoss))
	for _, pv := range mc.Percentiles {
		sb.WriteString(fmt.Sprintf("| P%g | %.2f |\n", pv.Percentile*100, pv.Value))
	}
	sb.WriteString("\n")
}

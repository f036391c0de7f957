package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"strategy-validation-lab/internal/domain"
)

// RenderTrialsCSV renders the trial ledger as CSV, one row per record in the given order.
func RenderTrialsCSV(records []domain.TrialRecord) (string, error) {
	rows := [][]string{{
		"run_id", "trial_index", "combination", "status",
		"train_start", "train_end", "test_start", "test_end",
		"train_sharpe", "test_sharpe", "train_total_return", "test_total_return",
		"test_max_drawdown", "test_periods", "duration_ms", "error",
	}}
	for _, r := range records {
		rows = append(rows, []string{
			r.RunID,
			strconv.Itoa(r.Index),
			r.Combination.Key(),
			string(r.Status),
			r.TrainRange.Start.Format(domain.DateLayout),
			r.TrainRange.End.Format(domain.DateLayout),
			r.TestRange.Start.Format(domain.DateLayout),
			r.TestRange.End.Format(domain.DateLayout),
			formatFloat(r.TrainMetrics.Sharpe),
			formatFloat(r.TestMetrics.Sharpe),
			formatFloat(r.TrainMetrics.TotalReturn),
			formatFloat(r.TestMetrics.TotalReturn),
			formatFloat(r.TestMetrics.MaxDrawdown),
			strconv.Itoa(r.TestMetrics.Periods),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			r.Error,
		})
	}
	return writeCSV(rows)
}

// RenderWindowsCSV renders the walk-forward window table as CSV.
func RenderWindowsCSV(wf *domain.WalkForwardResult) (string, error) {
	rows := [][]string{{
		"run_id", "window_index", "train_start", "train_end", "test_start", "test_end",
		"combination", "train_metric", "test_metric", "status", "error",
	}}
	for _, w := range wf.Windows {
		rows = append(rows, []string{
			wf.RunID,
			strconv.Itoa(w.Window.Index),
			w.Window.TrainRange.Start.Format(domain.DateLayout),
			w.Window.TrainRange.End.Format(domain.DateLayout),
			w.Window.TestRange.Start.Format(domain.DateLayout),
			w.Window.TestRange.End.Format(domain.DateLayout),
			w.Combination.Key(),
			formatFloat(w.TrainMetric),
			formatFloat(w.TestMetric),
			string(w.Status),
			w.Error,
		})
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

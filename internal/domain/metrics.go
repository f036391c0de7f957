package domain

import (
	"fmt"
	"sort"
)

// MetricSet holds scalar performance metrics derived from a ReturnSeries.
// Every field is finite.
type MetricSet struct {
	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	Sharpe               float64 `json:"sharpe"`
	Sortino              float64 `json:"sortino"`
	MaxDrawdown          float64 `json:"max_drawdown"` // <= 0
	Calmar               float64 `json:"calmar"`
	WinRate              float64 `json:"win_rate"`
	Periods              int     `json:"periods"`
}

// Objective names a MetricSet field to maximize.
type Objective string

// Objectives.
const (
	ObjectiveSharpe       Objective = "sharpe"
	ObjectiveSortino      Objective = "sortino"
	ObjectiveCalmar       Objective = "calmar"
	ObjectiveAnnualReturn Objective = "annual_return"
	ObjectiveTotalReturn  Objective = "total_return"
	ObjectiveMaxDrawdown  Objective = "max_drawdown"
	ObjectiveWinRate      Objective = "win_rate"
)

var objectiveFields = map[Objective]func(MetricSet) float64{
	ObjectiveSharpe:       func(m MetricSet) float64 { return m.Sharpe },
	ObjectiveSortino:      func(m MetricSet) float64 { return m.Sortino },
	ObjectiveCalmar:       func(m MetricSet) float64 { return m.Calmar },
	ObjectiveAnnualReturn: func(m MetricSet) float64 { return m.AnnualizedReturn },
	ObjectiveTotalReturn:  func(m MetricSet) float64 { return m.TotalReturn },
	ObjectiveMaxDrawdown:  func(m MetricSet) float64 { return m.MaxDrawdown },
	ObjectiveWinRate:      func(m MetricSet) float64 { return m.WinRate },
}

// ParseObjective validates an objective name.
func ParseObjective(name string) (Objective, error) {
	o := Objective(name)
	if _, ok := objectiveFields[o]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownObjective, name)
	}
	return o, nil
}

// ObjectiveNames lists the supported objectives in sorted order.
func ObjectiveNames() []string {
	names := make([]string, 0, len(objectiveFields))
	for o := range objectiveFields {
		names = append(names, string(o))
	}
	sort.Strings(names)
	return names
}

// Value returns the metric named by o. All objectives are "higher is better";
// MaxDrawdown is stored as a non-positive number so that holds for it too.
func (m MetricSet) Value(o Objective) (float64, error) {
	f, ok := objectiveFields[o]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownObjective, o)
	}
	return f(m), nil
}

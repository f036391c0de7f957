package search

import (
	"fmt"
	"sort"
	"time"

	"strategy-validation-lab/internal/domain"
)

// Method names the search strategy.
type Method string

// Search methods.
const (
	MethodGrid   Method = "grid"
	MethodRandom Method = "random"
)

// ParseMethod resolves a method name; the empty name selects grid search.
func ParseMethod(name string) (Method, error) {
	switch m := Method(name); m {
	case "":
		return MethodGrid, nil
	case MethodGrid, MethodRandom:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown search method %q", domain.ErrUsage, name)
	}
}

// Result describes a completed (or partially completed) search run.
type Result struct {
	RunID      string
	Method     Method
	Objective  domain.Objective
	Range      domain.DateRange
	TrainRange domain.DateRange
	TestRange  domain.DateRange

	// Records is the trial ledger in enumeration order.
	Records   []domain.TrialRecord
	Planned   int // combinations enumerated or drawn
	Succeeded int
	Failed    int

	StartedAt  time.Time
	FinishedAt time.Time
}

// FromLedger rebuilds a Result from stored trial records so they can be
// ranked again. Method and timestamps are not stored with the ledger and stay zero.
func FromLedger(runID string, objective domain.Objective, records []domain.TrialRecord) *Result {
	res := &Result{RunID: runID, Objective: objective, Records: records, Planned: len(records)}
	for _, rec := range records {
		if rec.Succeeded() {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	if len(records) > 0 {
		res.TrainRange = records[0].TrainRange
		res.TestRange = records[0].TestRange
		res.Range = domain.DateRange{Start: res.TrainRange.Start, End: res.TestRange.End}
	}
	return res
}

// Total returns the number of recorded trials.
func (r *Result) Total() int {
	return len(r.Records)
}

// Best returns the succeeded record with the highest test objective.
// Ties go to the lowest index. ok is false when no record succeeded.
func (r *Result) Best() (best domain.TrialRecord, ok bool) {
	top := r.Top(1)
	if len(top) == 0 {
		return domain.TrialRecord{}, false
	}
	return top[0], true
}

// Top ranks succeeded records by test objective, descending, ties by index.
// n <= 0 returns all succeeded records.
func (r *Result) Top(n int) []domain.TrialRecord {
	ranked := make([]domain.TrialRecord, 0, r.Succeeded)
	for _, rec := range r.Records {
		if rec.Succeeded() {
			ranked = append(ranked, rec)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		vi := objectiveValue(ranked[i].TestMetrics, r.Objective)
		vj := objectiveValue(ranked[j].TestMetrics, r.Objective)
		if vi != vj {
			return vi > vj
		}
		return ranked[i].Index < ranked[j].Index
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func objectiveValue(m domain.MetricSet, o domain.Objective) float64 {
	v, err := m.Value(o)
	if err != nil {
		return 0
	}
	return v
}

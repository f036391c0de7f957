package api

import (
	"sort"
	"sync"
	"time"

	"strategy-validation-lab/internal/observability"
)

// Run kinds tracked by the server.
const (
	KindSearch      = observability.KindSearch
	KindWalkForward = observability.KindWalkForward
	KindMonteCarlo  = observability.KindMonteCarlo
)

// Run states.
const (
	StateRunning  = "running"
	StateFinished = "finished"
	StateFailed   = "failed"
)

// RunStatus is the server-side view of one submitted run.
type RunStatus struct {
	RunID      string     `json:"run_id"`
	Kind       string     `json:"kind"`
	State      string     `json:"state"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// runTable tracks runs submitted to this process.
type runTable struct {
	mu   sync.Mutex
	runs map[string]*RunStatus
}

func newRunTable() *runTable {
	return &runTable{runs: make(map[string]*RunStatus)}
}

func (t *runTable) start(runID, kind string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[runID] = &RunStatus{RunID: runID, Kind: kind, State: StateRunning, StartedAt: now}
}

// finish records the outcome. A run that returned a partial result with an
// error is still marked failed.
func (t *runTable) finish(runID string, err error, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rs, ok := t.runs[runID]
	if !ok {
		return
	}
	rs.State = StateFinished
	if err != nil {
		rs.State = StateFailed
		rs.Error = err.Error()
	}
	rs.FinishedAt = &now
}

func (t *runTable) get(runID string) (RunStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rs, ok := t.runs[runID]
	if !ok {
		return RunStatus{}, false
	}
	return *rs, true
}

// list returns all runs, newest first.
func (t *runTable) list() []RunStatus {
	t.mu.Lock()
	out := make([]RunStatus, 0, len(t.runs))
	for _, rs := range t.runs {
		out = append(out, *rs)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out
}

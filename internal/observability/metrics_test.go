package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-validation-lab/internal/domain"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg, "test"), reg
}

func TestMetrics_TrialsAndWindows(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.TrialCompleted(domain.TrialRecord{Status: domain.TrialSucceeded, Duration: 2 * time.Second})
	m.TrialCompleted(domain.TrialRecord{Status: domain.TrialSucceeded})
	m.TrialCompleted(domain.TrialRecord{Status: domain.TrialFailed})
	m.WindowCompleted("wf-1", domain.WindowResult{Status: domain.WindowOmitted})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TrialsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrialsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WindowsTotal.WithLabelValues("omitted")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TrialDuration))
}

func TestMetrics_RunLifecycle(t *testing.T) {
	m, _ := newTestMetrics(t)

	done := m.RunStarted(KindSearch)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveRuns.WithLabelValues(KindSearch)))
	done(fmt.Errorf("search: %w", domain.ErrTotalFailure))

	m.RunStarted(KindMonteCarlo)(nil)
	m.SimulationsCompleted(500)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveRuns.WithLabelValues(KindSearch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(KindSearch, "total_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(KindMonteCarlo, "ok")))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.SimulationsTotal))
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{domain.ErrTotalFailure, "total_failure"},
		{context.Canceled, "cancelled"},
		{fmt.Errorf("wrap: %w", domain.ErrInvalidTrainFraction), "usage_error"},
		{errors.New("disk full"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "%v", tt.err)
	}
}

func TestHandler(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.StoreFailed("postgres")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `test_storage_errors_total{store="postgres"} 1`))
}

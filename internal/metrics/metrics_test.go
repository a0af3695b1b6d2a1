package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRun("saved")
	m.ObserveTitle("heuristic")
	m.ObserveInference(time.Second)
	m.ObservePersist("append", time.Millisecond, nil)
	m.SetPending(3)
	assert.Nil(t, m.Registry())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveRun("saved")
	m.ObserveRun("saved")
	m.ObserveRun("duplicate")
	m.ObserveTitle("ollama")
	m.ObservePersist("new", time.Millisecond, nil)
	m.ObservePersist("append", time.Millisecond, errors.New("locked"))
	m.SetPending(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("saved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.titles.WithLabelValues("ollama")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persists.WithLabelValues("append", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persists.WithLabelValues("new", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pending))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRun("ignored")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `cliptitle_pipeline_runs_total{outcome="ignored"} 1`)
	assert.Contains(t, string(body), "cliptitle_persist_seconds")
}

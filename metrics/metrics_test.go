package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder("test", reg)

	r.ObserveCommand("wo", OutcomeOK, 10*time.Millisecond)
	r.ObserveCommand("wo", OutcomeOK, 20*time.Millisecond)
	r.ObserveCommand("systemctl", OutcomeTimeout, 5*time.Second)
	r.ObserveMonitoringFetch("system.cpu", OutcomeError)
	r.SetStreamSubscribers("nginx-access", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.commands.WithLabelValues("wo", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("systemctl", OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.monitoringFetches.WithLabelValues("system.cpu", OutcomeError)))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.streamSubscribers.WithLabelValues("nginx-access")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveCommand("wo", OutcomeOK, time.Second)
		r.ObserveMonitoringFetch("system.ram", OutcomeOK)
		r.SetStreamSubscribers("mysql", 0)
	})
}

func TestMetricsServerHandler(t *testing.T) {
	srv, err := New("wo_dashboard", "127.0.0.1:0")
	require.NoError(t, err)
	srv.Recorder.ObserveCommand("wo", OutcomeOK, time.Millisecond)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `wo_dashboard_commands_total{binary="wo",outcome="ok"} 1`)
}

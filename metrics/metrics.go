// Package metrics exposes Prometheus collectors for the dashboard and the
// HTTP server that serves them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeTimeout  = "timeout"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Recorder owns the dashboard collectors. A nil *Recorder is valid and
// records nothing, so components can be built without metrics in tests.
type Recorder struct {
	commands          *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	monitoringFetches *prometheus.CounterVec
	streamSubscribers *prometheus.GaugeVec
}

// NewRecorder registers the collectors on reg under namespace.
func NewRecorder(namespace string, reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "External commands executed, by binary and outcome.",
		}, []string{"binary", "outcome"}),
		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Wall time of external commands.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 300},
		}, []string{"binary"}),
		monitoringFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitoring_fetch_total",
			Help:      "Netdata series fetches, by context and outcome.",
		}, []string{"context", "outcome"}),
		streamSubscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_stream_subscribers",
			Help:      "Live log stream subscribers per topic.",
		}, []string{"topic"}),
	}
}

// ObserveCommand records one external command run.
func (r *Recorder) ObserveCommand(binary, outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(binary, outcome).Inc()
	r.commandDuration.WithLabelValues(binary).Observe(took.Seconds())
}

// ObserveMonitoringFetch records one monitoring API request.
func (r *Recorder) ObserveMonitoringFetch(scope, outcome string) {
	if r == nil {
		return
	}
	r.monitoringFetches.WithLabelValues(scope, outcome).Inc()
}

// SetStreamSubscribers publishes the subscriber count of a log topic.
func (r *Recorder) SetStreamSubscribers(topic string, n int) {
	if r == nil {
		return
	}
	r.streamSubscribers.WithLabelValues(topic).Set(float64(n))
}

// MetricsServer serves /metrics from its own registry.
type MetricsServer struct {
	Recorder *Recorder

	registry *prometheus.Registry
	srv      *http.Server
}

// New creates a metrics server listening on addr. The server is not started
// until ListenAndServe is called.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		Recorder: NewRecorder(namespace, registry),
		registry: registry,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Handler returns the /metrics router, mostly for tests.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

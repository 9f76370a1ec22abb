// Package metrics provides Prometheus metrics for the sync engines
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Save results
const (
	ResultSaved    = "saved"
	ResultConflict = "conflict"
	ResultError    = "error"
	ResultStale    = "stale" // response superseded by a newer save
)

// Boards that perform optimistic structural moves
const (
	BoardOutline = "outline"
	BoardPlot    = "plot"
)

// Metrics holds all Prometheus metrics of one client process.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Editor
	SavesTotal     *prometheus.CounterVec
	SaveDuration   *prometheus.HistogramVec
	ConflictsTotal prometheus.Counter

	// Boards
	MovesTotal     *prometheus.CounterVec
	RollbacksTotal *prometheus.CounterVec

	// Streaming
	StreamEventsTotal *prometheus.CounterVec
	StreamsActive     prometheus.Gauge
	StreamsTotal      *prometheus.CounterVec

	// Transport
	HTTPRetriesTotal prometheus.Counter
}

// New creates all metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.SavesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_saves_total",
			Help: "Chapter saves by kind and result",
		},
		[]string{"kind", "result"},
	)

	m.SaveDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkwell_save_duration_seconds",
			Help:    "Duration of chapter save round trips in seconds",
			Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	m.ConflictsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_version_conflicts_total",
			Help: "Writes rejected because the base version was stale",
		},
	)

	m.MovesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_board_moves_total",
			Help: "Persisted drag moves by board",
		},
		[]string{"board"},
	)

	m.RollbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_board_rollbacks_total",
			Help: "Optimistic moves rolled back after a failed persist",
		},
		[]string{"board"},
	)

	m.StreamEventsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_stream_events_total",
			Help: "SSE events received by event name",
		},
		[]string{"event"},
	)

	m.StreamsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkwell_streams_active",
			Help: "Push channels currently open",
		},
	)

	m.StreamsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_streams_total",
			Help: "Generation jobs by mode and final status",
		},
		[]string{"mode", "status"},
	)

	m.HTTPRetriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_http_retries_total",
			Help: "Requests retried after a 429 response",
		},
	)

	return m
}

// Registry exposes the private registry (for tests and exporters)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSave records one completed save
func (m *Metrics) ObserveSave(kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(kind, result).Inc()
	m.SaveDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if result == ResultConflict {
		m.ConflictsTotal.Inc()
	}
}

func (m *Metrics) Move(board string) {
	if m == nil {
		return
	}
	m.MovesTotal.WithLabelValues(board).Inc()
}

func (m *Metrics) Rollback(board string) {
	if m == nil {
		return
	}
	m.RollbacksTotal.WithLabelValues(board).Inc()
}

func (m *Metrics) StreamEvent(name string) {
	if m == nil {
		return
	}
	m.StreamEventsTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.StreamsActive.Inc()
}

// StreamClosed records the end of a channel and the job's final status
func (m *Metrics) StreamClosed(mode, status string) {
	if m == nil {
		return
	}
	m.StreamsActive.Dec()
	m.StreamsTotal.WithLabelValues(mode, status).Inc()
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.HTTPRetriesTotal.Inc()
}

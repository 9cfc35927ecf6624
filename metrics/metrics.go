// Package metrics exposes Prometheus instrumentation for the session hub
// and the translation pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles every collector the server registers.
type Set struct {
	registry *prometheus.Registry

	ActiveRooms       prometheus.Gauge
	ActiveConnections prometheus.Gauge
	ChunksReceived    prometheus.Counter
	ChunksDropped     *prometheus.CounterVec
	ResultsBroadcast  prometheus.Counter
	EventsDropped     prometheus.Counter
	StageDuration     *prometheus.HistogramVec
}

// Drop reasons used with ChunksDropped.
const (
	DropTooSmall        = "too_small"
	DropDecode          = "decode"
	DropQueueFull       = "queue_full"
	DropTranscribeError = "transcribe_error"
	DropLowConfidence   = "low_confidence"
	DropCancelled       = "cancelled"
)

// New creates and registers the full collector set on a fresh registry.
func New() *Set {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Set{
		registry: reg,
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "speakfluent_active_rooms",
			Help: "Rooms currently holding at least one live session.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "speakfluent_active_connections",
			Help: "Live WebSocket sessions across all rooms.",
		}),
		ChunksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "speakfluent_audio_chunks_received_total",
			Help: "Binary audio frames received from clients.",
		}),
		ChunksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "speakfluent_audio_chunks_dropped_total",
			Help: "Audio chunks dropped before producing a result.",
		}, []string{"reason"}),
		ResultsBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "speakfluent_translation_results_total",
			Help: "Translation results broadcast to rooms.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "speakfluent_outbound_events_dropped_total",
			Help: "Non-critical events dropped from full outbound queues.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "speakfluent_pipeline_stage_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	reg.MustRegister(
		s.ActiveRooms,
		s.ActiveConnections,
		s.ChunksReceived,
		s.ChunksDropped,
		s.ResultsBroadcast,
		s.EventsDropped,
		s.StageDuration,
	)
	return s
}

// Handler serves the registry at /metrics.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

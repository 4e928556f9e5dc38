package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the node's Prometheus metrics. It implements
// transport.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	MessagesEnqueued   *prometheus.CounterVec
	MessagesDropped    *prometheus.CounterVec
	MessagesDispatched *prometheus.CounterVec
	DecodeErrors       *prometheus.CounterVec
	DispatchDuration   *prometheus.HistogramVec
	BridgeRequests     *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		MessagesEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cellnode_messages_enqueued_total",
			Help: "Total number of messages accepted onto the dispatch queue",
		}, []string{"channel"}),
		MessagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cellnode_messages_dropped_total",
			Help: "Total number of messages dropped because the dispatch queue was full",
		}, []string{"channel"}),
		MessagesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cellnode_messages_dispatched_total",
			Help: "Total number of messages delivered to subscribers",
		}, []string{"channel"}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cellnode_decode_errors_total",
			Help: "Total number of messages rejected because they did not decode",
		}, []string{"channel"}),
		DispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cellnode_dispatch_duration_seconds",
			Help:    "Time spent running all subscribers of one message",
			Buckets: []float64{.00005, .0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"channel"}),
		BridgeRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cellnode_bridge_requests_total",
			Help: "Total number of bridge ingress requests by response code",
		}, []string{"code"}),
	}
}

// Enqueued counts a message accepted onto the queue.
func (m *Metrics) Enqueued(channel string) {
	m.MessagesEnqueued.WithLabelValues(channel).Inc()
}

// Dropped counts a message lost to a full queue.
func (m *Metrics) Dropped(channel string) {
	m.MessagesDropped.WithLabelValues(channel).Inc()
}

// Dispatched counts a delivered message and observes its handler time.
func (m *Metrics) Dispatched(channel string, elapsed time.Duration) {
	m.MessagesDispatched.WithLabelValues(channel).Inc()
	m.DispatchDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
}

// DecodeFailed counts a message rejected at the decode boundary.
func (m *Metrics) DecodeFailed(channel string) {
	m.DecodeErrors.WithLabelValues(channel).Inc()
}

// ObserveBridgeRequest counts one bridge ingress response.
func (m *Metrics) ObserveBridgeRequest(code int) {
	m.BridgeRequests.WithLabelValues(http.StatusText(code)).Inc()
}

// TrackQueueDepth exposes the current queue depth as a gauge.
func (m *Metrics) TrackQueueDepth(depth func() int) {
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "cellnode_queue_depth",
		Help: "Number of messages waiting on the dispatch queue",
	}, func() float64 { return float64(depth()) })
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

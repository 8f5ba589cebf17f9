package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records guest and host activity as Prometheus collectors.
type Metrics struct {
	registry prometheus.Registerer

	SessionEvents *prometheus.CounterVec
	Requests      *prometheus.CounterVec
	Replies       *prometheus.CounterVec
	ReplyLatency  *prometheus.HistogramVec
	Served        *prometheus.CounterVec
	ServeLatency  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// It panics if they are already registered, like prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registry: reg,
		SessionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storageguest_session_events_total",
				Help: "Handshake transitions by event type",
			},
			[]string{"event"},
		),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storageguest_requests_total",
				Help: "Requests posted to a frame",
			},
			[]string{"method"},
		),
		Replies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storageguest_replies_total",
				Help: "Replies matched to a pending request",
			},
			[]string{"method", "outcome"},
		),
		ReplyLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storageguest_reply_duration_seconds",
				Help:    "Time between posting a request and matching its reply",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		Served: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storageguest_host_requests_total",
				Help: "Requests answered by a storage host",
			},
			[]string{"method", "outcome"},
		),
		ServeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storageguest_host_request_duration_seconds",
				Help:    "Time a storage host spent answering a request",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	reg.MustRegister(m.SessionEvents, m.Requests, m.Replies, m.ReplyLatency, m.Served, m.ServeLatency)
	return m
}

// TrackConnections exposes the number of open frame connections as a gauge.
func (m *Metrics) TrackConnections(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "storageguest_host_connections",
			Help: "Open frame connections",
		},
		func() float64 { return float64(count()) },
	))
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSession: func(_ context.Context, e *domain.SessionEvent) {
			m.SessionEvents.WithLabelValues(string(e.Type)).Inc()
		},
		OnRequest: func(_ context.Context, e *domain.RequestEvent) {
			m.Requests.WithLabelValues(string(e.Method)).Inc()
		},
		OnReply: func(_ context.Context, e *domain.RequestEvent) {
			m.Replies.WithLabelValues(string(e.Method), outcome(e.IsError)).Inc()
			m.ReplyLatency.WithLabelValues(string(e.Method)).Observe(e.Elapsed.Seconds())
		},
		OnServe: func(_ context.Context, e *domain.RequestEvent) {
			m.Served.WithLabelValues(string(e.Method), outcome(e.IsError)).Inc()
			m.ServeLatency.WithLabelValues(string(e.Method)).Observe(e.Elapsed.Seconds())
		},
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func outcome(isError bool) string {
	if isError {
		return "error"
	}
	return "ok"
}

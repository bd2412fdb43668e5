package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "courier"

// Result labels shared across counters.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultSent      = "sent"
	ResultDropped   = "dropped"
	ResultSkipped   = "skipped"
	ResultClaimed   = "claimed"
	ResultTaken     = "taken"
	ResultInvalid   = "invalid"
	ResultNotFound  = "not_found"
	ResultForwarded = "forwarded"
	ResultOK        = "ok"
)

// Gauges are sampled on scrape.
type Gauges interface {
	LiveEndpointCount() int
	ChannelCount() int
}

// Metrics owns the relay's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	published   *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	forwards    *prometheus.CounterVec
	probes      *prometheus.CounterVec
	evictions   prometheus.Counter
	claims      *prometheus.CounterVec
	publishTime prometheus.Histogram
	queueDepth  prometheus.Gauge
}

// New registers the relay collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Messages accepted for publish, by outcome.",
		}, []string{"outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_deliveries_total",
			Help:      "Live sends to endpoints, by result.",
		}, []string{"result"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwards_total",
			Help:      "Push-forward attempts, by result.",
		}, []string{"result"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_probes_total",
			Help:      "Liveness probes written, by result.",
		}, []string{"result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_evictions_total",
			Help:      "Endpoints evicted after missing a probe.",
		}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ownership_claims_total",
			Help:      "Slug claims, by result.",
		}, []string{"result"}),
		publishTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent in publish, persistence and live delivery included.",
			Buckets:   prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forward_queue_depth",
			Help:      "Jobs waiting in the push-forward queue.",
		}),
	}
	reg.MustRegister(
		m.published, m.deliveries, m.forwards, m.probes,
		m.evictions, m.claims, m.publishTime, m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe registers scrape-time gauges backed by g.
func (m *Metrics) Observe(g Gauges) {
	if m == nil || g == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_endpoints",
			Help:      "Endpoints currently registered.",
		}, func() float64 { return float64(g.LiveEndpointCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribed_channels",
			Help:      "Channels with at least one live subscriber.",
		}, func() float64 { return float64(g.ChannelCount()) }),
	)
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Published counts one publish by outcome (delivered, forwarded, not_found...).
func (m *Metrics) Published(outcome string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(outcome).Inc()
}

// Delivery counts one live send.
func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

// Forward counts one push-forward outcome.
func (m *Metrics) Forward(result string) {
	if m == nil {
		return
	}
	m.forwards.WithLabelValues(result).Inc()
}

// Probe counts one liveness probe.
func (m *Metrics) Probe(result string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(result).Inc()
}

// Evicted counts n liveness evictions.
func (m *Metrics) Evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// Claim counts one ownership claim.
func (m *Metrics) Claim(result string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(result).Inc()
}

// PublishDuration records publish latency.
func (m *Metrics) PublishDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.publishTime.Observe(d.Seconds())
}

// QueueDepth records the push-forward backlog.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

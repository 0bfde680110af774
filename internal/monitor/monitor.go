package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RouteStatus    *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	RulesCalls     *prometheus.CounterVec
	RulesLatency   *prometheus.HistogramVec
	RulesRetries   *prometheus.CounterVec
	FanoutFailures *prometheus.CounterVec
	GamesCreated   prometheus.Counter
	MovesAccepted  *prometheus.CounterVec
}

// NewMetrics registers the collectors on a registry of their own.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RouteStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_responses_total",
			Help:      "Responses per route and status code",
		}, []string{"route", "method", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "Request processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"route"}),
		RulesCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_calls_total",
			Help:      "Calls to rules services per game type, endpoint and outcome",
		}, []string{"type", "endpoint", "outcome"}),
		RulesLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rules_latency_seconds",
			Help:      "Rules service round-trip latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"type", "endpoint"}),
		RulesRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_retries_total",
			Help:      "Move submissions retried after a connection reset",
		}, []string{"type"}),
		FanoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_failures_total",
			Help:      "Failed notification or chat deliveries",
		}, []string{"channel"}),
		GamesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_created_total",
			Help:      "Games created",
		}),
		MovesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_accepted_total",
			Help:      "Moves persisted per game type",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RouteStatus,
		m.RequestLatency,
		m.RulesCalls,
		m.RulesLatency,
		m.RulesRetries,
		m.FanoutFailures,
		m.GamesCreated,
		m.MovesAccepted,
	)

	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route, method string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.RouteStatus.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestLatency.WithLabelValues(route).Observe(latency.Seconds())
}

// ObserveRulesCall records one rules round trip. outcome is ok, rejected or error.
func (m *Metrics) ObserveRulesCall(gameType, endpoint, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.RulesCalls.WithLabelValues(gameType, endpoint, outcome).Inc()
	m.RulesLatency.WithLabelValues(gameType, endpoint).Observe(latency.Seconds())
}

func (m *Metrics) IncRulesRetry(gameType string) {
	if m == nil {
		return
	}
	m.RulesRetries.WithLabelValues(gameType).Inc()
}

func (m *Metrics) IncFanoutFailure(channel string) {
	if m == nil {
		return
	}
	m.FanoutFailures.WithLabelValues(channel).Inc()
}

func (m *Metrics) IncGamesCreated() {
	if m == nil {
		return
	}
	m.GamesCreated.Inc()
}

func (m *Metrics) IncMovesAccepted(gameType string) {
	if m == nil {
		return
	}
	m.MovesAccepted.WithLabelValues(gameType).Inc()
}

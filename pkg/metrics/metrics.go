// Package metrics exposes Prometheus collectors for SoulSpace.
//
// A Metrics value owns its own registry so tests and multiple servers in one
// process never collide on the default registerer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soulspace/soulspace-hub/pkg/circuitbreaker"
)

const namespace = "soulspace"

// Metrics holds every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	xpGranted        *prometheus.CounterVec
	xpAmount         *prometheus.CounterVec
	levelUps         prometheus.Counter
	milestones       *prometheus.CounterVec
	goalsCategorized *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	breakerState *prometheus.GaugeVec

	eventsPublished *prometheus.CounterVec
	eventFailures   *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		xpGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_grants_total",
			Help:      "Number of XP grants applied, by source.",
		}, []string{"source"}),
		xpAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_granted_total",
			Help:      "Total XP granted, by source.",
		}, []string{"source"}),
		levelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_ups_total",
			Help:      "Levels gained across all users.",
		}),
		milestones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_milestones_total",
			Help:      "Level-ups that reached a new level title.",
		}, []string{"title"}),
		goalsCategorized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goals_categorized_total",
			Help:      "Categorizations performed, by resulting category.",
		}, []string{"category"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),

		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events published on the bus.",
		}, []string{"type"}),
		eventFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_failures_total",
			Help:      "Event handler invocations that returned an error.",
		}, []string{"type"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_duration_seconds",
			Help:      "Event handler latency.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.xpGranted, m.xpAmount, m.levelUps, m.milestones, m.goalsCategorized,
		m.httpRequests, m.httpDuration,
		m.breakerState,
		m.eventsPublished, m.eventFailures, m.eventDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ─────────────────────────────────────────────────────────────────────────────
// Progression
// ─────────────────────────────────────────────────────────────────────────────

// ObserveGrant records one applied XP grant.
func (m *Metrics) ObserveGrant(source string, amount int64) {
	m.xpGranted.WithLabelValues(source).Inc()
	m.xpAmount.WithLabelValues(source).Add(float64(amount))
}

// ObserveLevelUp records the levels gained by one grant.
func (m *Metrics) ObserveLevelUp(oldLevel, newLevel int) {
	if newLevel > oldLevel {
		m.levelUps.Add(float64(newLevel - oldLevel))
	}
}

// Milestone counts a level-up that changed the level title.
func (m *Metrics) Milestone(_ string, _ int, title string) {
	m.milestones.WithLabelValues(title).Inc()
}

// ObserveCategorized records one categorization result.
func (m *Metrics) ObserveCategorized(category string) {
	m.goalsCategorized.WithLabelValues(category).Inc()
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTP
// ─────────────────────────────────────────────────────────────────────────────

// ObserveHTTP records one served request. route is the route pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ─────────────────────────────────────────────────────────────────────────────
// Resilience and events
// ─────────────────────────────────────────────────────────────────────────────

// BreakerStateChanged matches the circuitbreaker state change callback.
func (m *Metrics) BreakerStateChanged(name string, _, to circuitbreaker.State) {
	m.breakerState.WithLabelValues(name).Set(float64(to))
}

// EventPublished counts a bus publish.
func (m *Metrics) EventPublished(eventType string) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// EventHandled records one handler invocation.
func (m *Metrics) EventHandled(eventType string, d time.Duration, err error) {
	m.eventDuration.WithLabelValues(eventType).Observe(d.Seconds())
	if err != nil {
		m.eventFailures.WithLabelValues(eventType).Inc()
	}
}

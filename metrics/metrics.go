package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lunch_roulette"

// Metrics groups the collectors the server reports. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	upstreamRequests   *prometheus.CounterVec
	upstreamDuration   *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	sessionsActive     prometheus.Gauge
	tournamentsStarted prometheus.Counter
	tournamentsDone    prometheus.Counter
	matchesDecided     prometheus.Counter
	shareTokens        *prometheus.CounterVec
	questions          *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the restaurant API by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of restaurant API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Browsing sessions currently held in memory.",
		}),
		tournamentsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_started_total",
			Help:      "Tournaments started.",
		}),
		tournamentsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_finished_total",
			Help:      "Tournaments that produced a champion.",
		}),
		matchesDecided: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_decided_total",
			Help:      "Tournament matches decided by a user.",
		}),
		shareTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_tokens_total",
			Help:      "Share tokens encoded or decoded, by result.",
		}, []string{"op", "result"}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Contact form submissions by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.upstreamRequests, m.upstreamDuration,
			m.httpRequests, m.httpDuration,
			m.sessionsActive,
			m.tournamentsStarted, m.tournamentsDone, m.matchesDecided,
			m.shareTokens, m.questions,
		)
	}
	return m
}

func (m *Metrics) ObserveUpstream(endpoint string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	m.upstreamDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) SetSessionsActive(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

func (m *Metrics) TournamentStarted() {
	if m == nil {
		return
	}
	m.tournamentsStarted.Inc()
}

func (m *Metrics) MatchDecided(finished bool) {
	if m == nil {
		return
	}
	m.matchesDecided.Inc()
	if finished {
		m.tournamentsDone.Inc()
	}
}

func (m *Metrics) ShareToken(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "invalid"
	}
	m.shareTokens.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Question(result string) {
	if m == nil {
		return
	}
	m.questions.WithLabelValues(result).Inc()
}

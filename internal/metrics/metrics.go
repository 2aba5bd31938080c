// Package metrics tracks turn-level counters. It keeps two views of the
// same events: lock-free atomic counters snapshotted by the status
// endpoint, and Prometheus collectors scraped from /metrics. The Metrics
// type satisfies the session observer interface.
package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records turn outcomes. The zero value is not usable; construct
// with New.
type Metrics struct {
	registry *prometheus.Registry

	turns        atomic.Int64
	retries      atomic.Int64
	failures     atomic.Int64
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
	totalLatency atomic.Int64 // nanoseconds

	mu         sync.Mutex
	perSession map[string]tokenPair

	promTurns    *prometheus.CounterVec
	promRetries  *prometheus.CounterVec
	promFailures *prometheus.CounterVec
	promTokens   *prometheus.CounterVec
	promDuration *prometheus.HistogramVec
}

type tokenPair struct {
	in, out int64
}

// New creates a Metrics with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		registry:   prometheus.NewRegistry(),
		perSession: make(map[string]tokenPair),
		promTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_turns_total",
			Help: "Successfully completed conversational turns.",
		}, []string{"session", "model"}),
		promRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_stream_retries_total",
			Help: "Failed streaming attempts, by attempt number.",
		}, []string{"session", "attempt"}),
		promFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_turn_failures_total",
			Help: "Turns that exhausted all streaming attempts.",
		}, []string{"session"}),
		promTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_tokens_total",
			Help: "Lifetime token counters as reported by the provider.",
		}, []string{"session", "direction"}),
		promDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "troupe_turn_duration_seconds",
			Help:    "Wall-clock duration of completed turns, including retries.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"session", "model"}),
	}

	m.registry.MustRegister(
		m.promTurns,
		m.promRetries,
		m.promFailures,
		m.promTokens,
		m.promDuration,
	)
	return m
}

// Registry exposes the underlying Prometheus registry for scraping.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TurnCompleted records a successful turn. The token arguments are the
// session's lifetime counters after the turn; the totals advance by the
// delta since the previous event for that session.
func (m *Metrics) TurnCompleted(session, model string, duration time.Duration, inputTokens, outputTokens int) {
	m.turns.Add(1)
	m.totalLatency.Add(int64(duration))

	m.promTurns.WithLabelValues(session, model).Inc()
	m.promDuration.WithLabelValues(session, model).Observe(duration.Seconds())
	m.advanceTokens(session, int64(inputTokens), int64(outputTokens))
}

// advanceTokens reconciles the token counters to the session's lifetime
// values. Lifetime counters only grow, so the totals take the delta since
// the last event.
func (m *Metrics) advanceTokens(session string, inputTokens, outputTokens int64) {
	m.mu.Lock()
	prev := m.perSession[session]
	deltaIn := inputTokens - prev.in
	deltaOut := outputTokens - prev.out
	m.perSession[session] = tokenPair{in: inputTokens, out: outputTokens}
	m.mu.Unlock()

	m.inputTokens.Add(deltaIn)
	m.outputTokens.Add(deltaOut)
	m.promTokens.WithLabelValues(session, "input").Add(float64(deltaIn))
	m.promTokens.WithLabelValues(session, "output").Add(float64(deltaOut))
}

// StreamRetried records one failed streaming attempt.
func (m *Metrics) StreamRetried(session string, attempt int) {
	m.retries.Add(1)
	m.promRetries.WithLabelValues(session, strconv.Itoa(attempt)).Inc()
}

// TurnFailed records a turn that exhausted its attempts.
func (m *Metrics) TurnFailed(session string) {
	m.failures.Add(1)
	m.promFailures.WithLabelValues(session).Inc()
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() Snapshot {
	turns := m.turns.Load()
	snap := Snapshot{
		Turns:        turns,
		Retries:      m.retries.Load(),
		Failures:     m.failures.Load(),
		InputTokens:  m.inputTokens.Load(),
		OutputTokens: m.outputTokens.Load(),
	}
	if turns > 0 {
		snap.AvgTurnLatency = time.Duration(m.totalLatency.Load() / turns)
	}
	return snap
}

// Snapshot is a serializable point-in-time metrics view.
type Snapshot struct {
	Turns          int64         `json:"turns"`
	Retries        int64         `json:"retries"`
	Failures       int64         `json:"failures"`
	InputTokens    int64         `json:"input_tokens"`
	OutputTokens   int64         `json:"output_tokens"`
	AvgTurnLatency time.Duration `json:"avg_turn_latency_ns"`
}

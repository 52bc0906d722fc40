package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/postshelf/internal/progress"
)

// PrometheusSink exports render progress metrics via Prometheus. It owns the
// collectors for attempts started/completed/running and per strategy outcomes.
type PrometheusSink struct {
	attemptsStarted   *prometheus.CounterVec
	attemptsCompleted *prometheus.CounterVec
	attemptsRunning   prometheus.Gauge
	attemptDuration   *prometheus.HistogramVec
	strategyOutcomes  *prometheus.CounterVec
	boardsBuilt       prometheus.Counter

	tracker *attemptTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		attemptsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postshelf_render_attempts_started_total",
			Help: "Render attempts started, partitioned by mode.",
		}, []string{"mode"}),
		attemptsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postshelf_render_attempts_completed_total",
			Help: "Render attempts completed, partitioned by mode and final state.",
		}, []string{"mode", "state"}),
		attemptsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "postshelf_render_attempts_running",
			Help: "Render attempts currently in flight.",
		}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "postshelf_render_attempt_duration_seconds",
			Help:    "Wall time per completed render attempt.",
			Buckets: []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
		}, []string{"mode", "state"}),
		strategyOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postshelf_render_strategy_outcomes_total",
			Help: "Strategy results partitioned by strategy and state.",
		}, []string{"strategy", "state"}),
		boardsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postshelf_render_boards_built_total",
			Help: "Render boards built.",
		}),
		tracker: newAttemptTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.attemptsStarted,
		s.attemptsCompleted,
		s.attemptsRunning,
		s.attemptDuration,
		s.strategyOutcomes,
		s.boardsBuilt,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	mode := evt.Mode
	if mode == "" {
		mode = "unknown"
	}
	switch evt.Stage {
	case progress.StageBoardBuilt:
		s.boardsBuilt.Inc()
	case progress.StageRenderStart:
		s.attemptsStarted.WithLabelValues(mode).Inc()
		if s.tracker.start(evt.AttemptID) {
			s.attemptsRunning.Inc()
		}
	case progress.StageStrategyDone:
		s.strategyOutcomes.WithLabelValues(evt.Strategy, evt.State).Inc()
	case progress.StageRenderDone:
		s.attemptsCompleted.WithLabelValues(mode, evt.State).Inc()
		if evt.Dur > 0 {
			s.attemptDuration.WithLabelValues(mode, evt.State).Observe(evt.Dur.Seconds())
		}
		if s.tracker.complete(evt.AttemptID) {
			s.attemptsRunning.Dec()
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type attemptTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newAttemptTracker() *attemptTracker {
	return &attemptTracker{running: make(map[[16]byte]struct{})}
}

func (t *attemptTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *attemptTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quarterline/sportscrape/internal/progress"
)

// PrometheusSink exports run progress metrics via Prometheus. It owns the
// collectors for runs started/settled/running and per-sport match counters.
type PrometheusSink struct {
	runsStarted  prometheus.Counter
	runsSettled  *prometheus.CounterVec
	runsRunning  prometheus.Gauge
	runDuration  *prometheus.HistogramVec
	matchesByEnd *prometheus.CounterVec
	matchLatency *prometheus.HistogramVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrape_runs_started_total",
			Help: "Total runs that have started.",
		}),
		runsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_runs_settled_total",
			Help: "Total runs settled partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scrape_runs_running",
			Help: "Current number of running runs.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scrape_run_duration_seconds",
			Help:    "Wall time per settled run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"result"}),
		matchesByEnd: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_progress_matches_total",
			Help: "Match settlements partitioned by sport and state.",
		}, []string{"sport", "state"}),
		matchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scrape_match_duration_seconds",
			Help:    "Extraction duration partitioned by sport and state.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"sport", "state"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsSettled,
		s.runsRunning,
		s.runDuration,
		s.matchesByEnd,
		s.matchLatency,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. It is safe for
// concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageRunDone:
		s.settleRun(evt, "success")
	case progress.StageRunAborted:
		s.settleRun(evt, "aborted")
	case progress.StageMatchSettled:
		sport := evt.Sport
		if sport == "" {
			sport = "unknown"
		}
		s.matchesByEnd.WithLabelValues(sport, evt.State).Inc()
		if evt.Dur > 0 {
			s.matchLatency.WithLabelValues(sport, evt.State).Observe(evt.Dur.Seconds())
		}
	}
}

func (s *PrometheusSink) settleRun(evt progress.Event, result string) {
	s.runsSettled.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

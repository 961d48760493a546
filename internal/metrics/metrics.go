package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kode4food/miniscript/pkg/api"
)

// Metrics turns run events into Prometheus series. It is an engine observer
type Metrics struct {
	registry   *prometheus.Registry
	runs       *prometheus.CounterVec
	tasks      *prometheus.CounterVec
	duration   prometheus.Histogram
	inProgress prometheus.Gauge
	started    map[api.RunID]time.Time
	actions    map[string]bool
	mu         sync.Mutex
}

const (
	namespace = "miniscript"

	// UnknownAction labels task series whose action is not registered
	UnknownAction = "unknown"
)

// New creates the run metrics and registers them with a fresh registry.
// Task series are labeled with one of actions or an engine action; any
// other selector is counted under UnknownAction
func New(actions ...string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Script runs by final status",
		}, []string{"status"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Task evaluations by action and status",
		}, []string{"action", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of script runs",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_progress",
			Help:      "Script runs currently executing",
		}),
		started: map[api.RunID]time.Time{},
		actions: make(map[string]bool, len(actions)),
	}
	for _, name := range actions {
		m.actions[name] = true
	}
	m.registry.MustRegister(
		m.runs, m.tasks, m.duration, m.inProgress,
		collectors.NewGoCollector(),
	)
	return m
}

// Observe records a run event
func (m *Metrics) Observe(ev *api.Event) {
	switch ev.Type {
	case api.EventTypeRunStarted:
		m.mu.Lock()
		m.started[ev.RunID] = ev.Timestamp
		m.mu.Unlock()
		m.inProgress.Inc()

	case api.EventTypeTaskFinished:
		action := m.action(ev.Action)
		m.tasks.WithLabelValues(action, string(ev.Status)).Inc()

	case api.EventTypeRunCompleted, api.EventTypeRunFailed:
		m.finishRun(ev)
	}
}

// Registry returns the registry holding the run metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

func (m *Metrics) action(name string) string {
	if m.actions[name] || api.IsEngineAction(name) {
		return name
	}
	return UnknownAction
}

func (m *Metrics) finishRun(ev *api.Event) {
	status := api.RunCompleted
	switch {
	case ev.Type == api.EventTypeRunFailed:
		status = api.RunFailed
	case ev.Status == api.StatusReturned:
		status = api.RunReturned
	}
	m.runs.WithLabelValues(string(status)).Inc()

	m.mu.Lock()
	start, ok := m.started[ev.RunID]
	delete(m.started, ev.RunID)
	m.mu.Unlock()
	if !ok {
		return
	}
	m.inProgress.Dec()
	m.duration.Observe(ev.Timestamp.Sub(start).Seconds())
}

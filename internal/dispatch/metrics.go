package dispatch

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fabline/fabline/internal/events"
)

// Metrics counts dispatcher task outcomes.
type Metrics struct {
	tasks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the dispatcher collectors. A nil registerer uses the
// default Prometheus registerer once per process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	tasks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabline_dispatch_tasks_total",
		Help: "Side-effect tasks run by the dispatcher, by event, task and status.",
	}, []string{"event", "task", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fabline_dispatch_task_duration_seconds",
		Help:    "Duration of dispatcher side-effect tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event", "task"})
	registerer.MustRegister(tasks, duration)
	return &Metrics{tasks: tasks, duration: duration}
}

func (m *Metrics) observe(kind events.Kind, task string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.tasks.WithLabelValues(string(kind), task, status).Inc()
	m.duration.WithLabelValues(string(kind), task).Observe(elapsed.Seconds())
}

package task

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

type task struct {
	name     string
	interval time.Duration
	function func(ctx context.Context) error
}

// BackgroundTaskManager runs functions at a fixed interval until its context is cancelled.
// Register must not be called after Run.
type BackgroundTaskManager struct {
	tasks    []*task
	latency  *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

func NewBackgroundTaskManager(metricsPrefix string, registerer prometheus.Registerer) *BackgroundTaskManager {
	factory := promauto.With(registerer)
	return &BackgroundTaskManager{
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricsPrefix + "background_task_latency_seconds",
				Help:    "Background task latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
			},
			[]string{"task"}),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "background_task_failures_total",
				Help: "Number of background task runs that returned an error",
			},
			[]string{"task"}),
	}
}

func (m *BackgroundTaskManager) Register(name string, interval time.Duration, function func(ctx context.Context) error) {
	m.tasks = append(m.tasks, &task{name: name, interval: interval, function: function})
}

// Run starts every registered task and blocks until ctx is cancelled and all tasks have returned.
// Each task runs once immediately, then once per interval. Task errors are logged and counted, never returned.
func (m *BackgroundTaskManager) Run(ctx context.Context) error {
	wg := sync.WaitGroup{}
	wg.Add(len(m.tasks))
	for _, t := range m.tasks {
		go func(t *task) {
			defer wg.Done()
			m.loop(ctx, t)
		}(t)
	}
	wg.Wait()
	return nil
}

func (m *BackgroundTaskManager) loop(ctx context.Context, t *task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		m.runOnce(ctx, t)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *BackgroundTaskManager) runOnce(ctx context.Context, t *task) {
	start := time.Now()
	err := t.function(ctx)
	m.latency.WithLabelValues(t.name).Observe(time.Since(start).Seconds())
	if err != nil {
		m.failures.WithLabelValues(t.name).Inc()
		log.WithError(err).Warnf("Background task %s failed", t.name)
	}
}

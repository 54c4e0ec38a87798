// Package telemetry records run outcomes in a private Prometheus registry.
package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/3cpo-dev/autorun/pkg/api"
)

const namespace = "autorun"

// Collector tracks what happened to every run in the queue.
type Collector struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	skipped        prometheus.Counter
	launchFailures prometheus.Counter
	duration       *prometheus.HistogramVec
	lastRun        prometheus.Gauge

	mu       sync.Mutex
	statuses map[api.TerminalStatus]int
	skips    int
	failed   int
}

// NewCollector creates a collector with its metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs that reached a terminal status, by status.",
		}, []string{"status"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_skipped_total",
			Help:      "Runs skipped because their window had already ended.",
		}),
		launchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launch_failures_total",
			Help:      "Runs whose command could not be started.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time between launch and exit.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"status"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the most recent run ended.",
		}),
		statuses: make(map[api.TerminalStatus]int),
	}
	c.registry.MustRegister(c.runs, c.skipped, c.launchFailures, c.duration, c.lastRun)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) RunFinished(runID string, status api.TerminalStatus, d time.Duration) {
	c.runs.WithLabelValues(string(status)).Inc()
	c.duration.WithLabelValues(string(status)).Observe(d.Seconds())
	c.lastRun.SetToCurrentTime()

	c.mu.Lock()
	c.statuses[status]++
	c.mu.Unlock()
}

func (c *Collector) RunSkipped(runID string) {
	c.skipped.Inc()

	c.mu.Lock()
	c.skips++
	c.mu.Unlock()
}

func (c *Collector) LaunchFailed(runID string) {
	c.launchFailures.Inc()

	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

// WriteTextfile writes the current metrics in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// LogSummary logs one line with the outcome counts.
func (c *Collector) LogSummary(logger zerolog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev := logger.Info().Int("skipped", c.skips).Int("launch_failed", c.failed)
	total := c.skips + c.failed
	for _, s := range api.Statuses {
		ev = ev.Int(string(s), c.statuses[s])
		total += c.statuses[s]
	}
	ev.Int("total", total).Msg("Run queue finished")
}

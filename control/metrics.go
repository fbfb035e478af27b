// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loop counters exported to Prometheus. Loops publish snapshots into a
// MetricsRegistry from their own goroutine; the collector only reads the
// registry, so scrapes never touch loop state.

package control

import (
	"sync"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/uv"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRegistry holds the latest counters of every published loop.
type MetricsRegistry struct {
	mu      sync.RWMutex
	loops   map[string]uv.Metrics
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		loops: make(map[string]uv.Metrics),
	}
}

// Set stores the snapshot of loop name.
func (mr *MetricsRegistry) Set(name string, m uv.Metrics) {
	mr.mu.Lock()
	mr.loops[name] = m
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Remove forgets loop name.
func (mr *MetricsRegistry) Remove(name string) {
	mr.mu.Lock()
	delete(mr.loops, name)
	mr.mu.Unlock()
}

// GetSnapshot returns a copy of the latest snapshots.
func (mr *MetricsRegistry) GetSnapshot() map[string]uv.Metrics {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]uv.Metrics, len(mr.loops))
	for k, v := range mr.loops {
		out[k] = v
	}
	return out
}

// Updated returns when a snapshot was last stored.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// PublishMetrics copies l's counters into reg under name every interval.
// The returned timer is unreferenced so it never keeps the loop alive;
// closing it stops publishing and removes the entry.
func PublishMetrics(l *uv.Loop, name string, reg *MetricsRegistry, interval time.Duration) (*uv.Timer, error) {
	if interval <= 0 {
		interval = time.Second
	}
	timer, err := uv.NewTimer(l)
	if err != nil {
		return nil, err
	}
	emitter.On(timer, func(_ uv.TimerEvent, t *uv.Timer) {
		reg.Set(name, t.Loop().Metrics())
	})
	emitter.On(timer, func(api.CloseEvent, *uv.Timer) { reg.Remove(name) })
	reg.Set(name, l.Metrics())
	if err := timer.Start(interval, interval); err != nil {
		timer.Close()
		return nil, err
	}
	timer.Unreference()
	return timer, nil
}

// LoopCollector implements prometheus.Collector over a MetricsRegistry.
type LoopCollector struct {
	reg            *MetricsRegistry
	iterations     *prometheus.Desc
	events         *prometheus.Desc
	eventsWaiting  *prometheus.Desc
	idleSeconds    *prometheus.Desc
	activeHandles  *prometheus.Desc
	activeRequests *prometheus.Desc
}

// NewLoopCollector creates a collector with metric names under namespace.
func NewLoopCollector(namespace string, reg *MetricsRegistry) *LoopCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "loop", name), help, []string{"loop"}, nil)
	}
	return &LoopCollector{
		reg:            reg,
		iterations:     desc("iterations_total", "Loop passes performed."),
		events:         desc("events_total", "Completions and readiness events dispatched."),
		eventsWaiting:  desc("events_waiting", "Completions queued for the next pass."),
		idleSeconds:    desc("idle_seconds_total", "Time spent blocked in poll."),
		activeHandles:  desc("active_handles", "Referenced active handles."),
		activeRequests: desc("active_requests", "Pending requests."),
	}
}

// Describe implements prometheus.Collector.
func (c *LoopCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.iterations
	ch <- c.events
	ch <- c.eventsWaiting
	ch <- c.idleSeconds
	ch <- c.activeHandles
	ch <- c.activeRequests
}

// Collect implements prometheus.Collector.
func (c *LoopCollector) Collect(ch chan<- prometheus.Metric) {
	for name, m := range c.reg.GetSnapshot() {
		ch <- prometheus.MustNewConstMetric(c.iterations, prometheus.CounterValue, float64(m.Iterations), name)
		ch <- prometheus.MustNewConstMetric(c.events, prometheus.CounterValue, float64(m.Events), name)
		ch <- prometheus.MustNewConstMetric(c.eventsWaiting, prometheus.GaugeValue, float64(m.EventsWaiting), name)
		ch <- prometheus.MustNewConstMetric(c.idleSeconds, prometheus.CounterValue, m.IdleTime.Seconds(), name)
		ch <- prometheus.MustNewConstMetric(c.activeHandles, prometheus.GaugeValue, float64(m.ActiveHandles), name)
		ch <- prometheus.MustNewConstMetric(c.activeRequests, prometheus.GaugeValue, float64(m.ActiveRequests), name)
	}
}

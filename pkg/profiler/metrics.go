package profiler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSet holds the sampler's self-metrics. A nil *metricsSet is a
// valid no-op receiver so the hot loop never branches on configuration.
type metricsSet struct {
	passes       prometheus.Counter
	passDuration prometheus.Histogram
	stackEvents  prometheus.Counter
	excEvents    prometheus.Counter
	interval     prometheus.Gauge
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	const (
		namespace = "threadprof"
		subsystem = "sampler"
	)
	m := &metricsSet{
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "passes_total",
			Help:      "Number of completed sampling passes.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pass_duration_seconds",
			Help:      "Cost of each sampling pass.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		stackEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stack_events_total",
			Help:      "Number of stack sample events emitted.",
		}),
		excEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "exception_events_total",
			Help:      "Number of exception sample events emitted.",
		}),
		interval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sleep_interval_seconds",
			Help:      "Current adaptive sleep interval between passes.",
		}),
	}
	reg.MustRegister(m.passes, m.passDuration, m.stackEvents, m.excEvents, m.interval)
	return m
}

func (m *metricsSet) observePass(used time.Duration, intervalS float64, nStacks, nExcs int) {
	if m == nil {
		return
	}
	m.passes.Inc()
	m.passDuration.Observe(used.Seconds())
	m.stackEvents.Add(float64(nStacks))
	m.excEvents.Add(float64(nExcs))
	m.interval.Set(intervalS)
}

// Package metrics collects runtime counters in a Prometheus registry and
// optionally serves them over HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/machinefabric/pdbridge-go/bridge"
	"github.com/machinefabric/pdbridge-go/wire"
)

const namespace = "pdbridge"

// Collector implements bridge.Observer on top of Prometheus collectors
type Collector struct {
	registry *prometheus.Registry

	recordsRead     prometheus.Counter
	recordsWritten  *prometheus.CounterVec
	framingErrors   *prometheus.CounterVec
	dispatches      *prometheus.CounterVec
	handlerFailures prometheus.Counter
	dispatchTime    prometheus.Histogram
}

var _ bridge.Observer = (*Collector)(nil)

// New creates a Collector with its own registry, including Go runtime and
// process collectors
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		recordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Inbound message records decoded.",
		}),
		recordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Outbound records written, by record type.",
		}, []string{"type"}),
		framingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "framing_errors_total",
			Help:      "Records discarded by the codec, by kind.",
		}, []string{"kind"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Messages dispatched, by route.",
		}, []string{"route"}),
		handlerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Handler invocations that returned an error or panicked.",
		}),
		dispatchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent running every handler for one message.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}

	c.registry.MustRegister(
		c.recordsRead,
		c.recordsWritten,
		c.framingErrors,
		c.dispatches,
		c.handlerFailures,
		c.dispatchTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry backing the collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordRead() {
	c.recordsRead.Inc()
}

func (c *Collector) RecordWritten(kind wire.RecordType) {
	c.recordsWritten.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) FramingError(kind wire.FramingErrorKind) {
	c.framingErrors.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) Dispatched(route string, handlers, failures int, elapsed time.Duration) {
	c.dispatches.WithLabelValues(route).Inc()
	if failures > 0 {
		c.handlerFailures.Add(float64(failures))
	}
	if handlers > 0 {
		c.dispatchTime.Observe(elapsed.Seconds())
	}
}

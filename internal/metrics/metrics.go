// Package metrics provides Prometheus metrics for segment I/O and store
// operations. A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "atfxcore"

// Collector holds all Prometheus metrics of the engine.
type Collector struct {
	Registry *prometheus.Registry

	// Codec metrics
	BytesRead         prometheus.Counter
	BytesWritten      *prometheus.CounterVec
	SegmentsRolled    *prometheus.CounterVec
	ComponentsWritten prometheus.Counter
	DecodeDuration    *prometheus.HistogramVec
	EncodeDuration    *prometheus.HistogramVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
}

// New creates a collector registered on its own registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)
	buckets := []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5}
	return &Collector{
		Registry: reg,
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_bytes_read_total",
			Help:      "Bytes read from segments",
		}),
		BytesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_bytes_written_total",
			Help:      "Bytes appended to segments by family",
		}, []string{"family"}),
		SegmentsRolled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_rolled_total",
			Help:      "Writes moved to the next segment index because the size limit was reached",
		}, []string{"family"}),
		ComponentsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "components_written_total",
			Help:      "External components produced by value writes, flags excluded",
		}),
		DecodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_duration_seconds",
			Help:      "Time spent decoding external components",
			Buckets:   buckets,
		}, []string{"result"}),
		EncodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_duration_seconds",
			Help:      "Time spent encoding values into segments",
			Buckets:   buckets,
		}, []string{"result"}),
		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Instance store operations by name and result",
		}, []string{"operation", "result"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveDecode records a decode call.
func (c *Collector) ObserveDecode(start time.Time, bytes int, err error) {
	if c == nil {
		return
	}
	c.DecodeDuration.WithLabelValues(result(err)).Observe(time.Since(start).Seconds())
	c.BytesRead.Add(float64(bytes))
}

// ObserveEncode records an encode call.
func (c *Collector) ObserveEncode(start time.Time, err error) {
	if c == nil {
		return
	}
	c.EncodeDuration.WithLabelValues(result(err)).Observe(time.Since(start).Seconds())
}

// Written records bytes appended to a segment family.
func (c *Collector) Written(family string, bytes int) {
	if c == nil {
		return
	}
	c.BytesWritten.WithLabelValues(family).Add(float64(bytes))
}

// Produced records external components returned by a value write. Flag
// writes only count as bytes.
func (c *Collector) Produced(components int) {
	if c == nil {
		return
	}
	c.ComponentsWritten.Add(float64(components))
}

// Rolled records a rollover to the next segment of a family.
func (c *Collector) Rolled(family string) {
	if c == nil {
		return
	}
	c.SegmentsRolled.WithLabelValues(family).Inc()
}

// StoreOp records the outcome of an instance store operation.
func (c *Collector) StoreOp(op string, err error) {
	if c == nil {
		return
	}
	c.StoreOperations.WithLabelValues(op, result(err)).Inc()
}

package collector

import (
	"time"

	"github.com/sarchlab/calltrace/calltree"
	"github.com/sarchlab/calltrace/recording"
	"github.com/sarchlab/calltrace/timing"
	"github.com/sarchlab/calltrace/tracepoint"
)

// Builder constructs collectors.
type Builder struct {
	timeTeller timing.TimeTeller
	registry   *tracepoint.Registry
	interval   time.Duration
	sinks      []recording.Sink
}

// MakeBuilder returns a builder with the default collection interval of
// one second.
func MakeBuilder() Builder {
	return Builder{
		interval: time.Second,
	}
}

// WithTimeTeller sets the clock the collector and its recorders read.
func (b Builder) WithTimeTeller(t timing.TimeTeller) Builder {
	b.timeTeller = t
	return b
}

// WithRegistry sets the tracepoint registry to record against.
func (b Builder) WithRegistry(r *tracepoint.Registry) Builder {
	b.registry = r
	return b
}

// WithInterval sets the period of the automatic collection cycle.
func (b Builder) WithInterval(d time.Duration) Builder {
	b.interval = d
	return b
}

// WithSink adds a sink that receives each cycle's per-tracepoint stats.
func (b Builder) WithSink(s recording.Sink) Builder {
	b.sinks = append(b.sinks, s)
	return b
}

// Build creates the collector.
func (b Builder) Build() *Collector {
	if b.timeTeller == nil {
		panic("timeTeller is not set")
	}

	if b.registry == nil {
		panic("registry is not set")
	}

	if b.interval <= 0 {
		panic("interval must be positive")
	}

	return &Collector{
		timeTeller:  b.timeTeller,
		registry:    b.registry,
		interval:    b.interval,
		sinks:       b.sinks,
		accumulated: calltree.NewRoot(),
	}
}

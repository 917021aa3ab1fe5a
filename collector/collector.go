// Package collector drives the call tree builders of all recorded
// threads: it hands out per-thread recorders, runs the periodic
// collection cycle that merges their trees, and publishes the merged
// result as immutable snapshots.
package collector

import (
	"sync"
	"time"

	"github.com/sarchlab/calltrace/calltree"
	"github.com/sarchlab/calltrace/recording"
	"github.com/sarchlab/calltrace/timing"
	"github.com/sarchlab/calltrace/tracepoint"
)

// A Snapshot is one published view of the merged call data. The tree and
// the stats are private copies; holders can read them without locking
// while collection continues.
type Snapshot struct {
	CycleStart timing.Time
	CycleEnd   timing.Time

	Tree      *calltree.Node
	FlatStats []calltree.FlatStat
}

// A Collector owns the accumulated call tree of the whole process.
type Collector struct {
	timeTeller timing.TimeTeller
	registry   *tracepoint.Registry
	interval   time.Duration
	sinks      []recording.Sink

	threadsMu sync.Mutex
	threads   []*ThreadRecorder

	// cycleMu serializes collection cycles; a ticker-driven cycle and a
	// manual CollectNow never run concurrently.
	cycleMu      sync.Mutex
	accumulated  *calltree.Node
	lastCycleEnd timing.Time

	snapshotMu sync.RWMutex
	snapshot   Snapshot

	runMu  sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
}

// Start launches the periodic collection goroutine. Starting a running
// collector does nothing.
func (c *Collector) Start() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.stop != nil {
		return
	}

	c.ticker = time.NewTicker(c.interval)
	c.stop = make(chan struct{})

	go c.run(c.ticker, c.stop)
}

// Stop halts periodic collection. Stopping a stopped collector does
// nothing. Data already collected stays published.
func (c *Collector) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.stop == nil {
		return
	}

	c.ticker.Stop()
	close(c.stop)
	c.stop = nil
}

func (c *Collector) run(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C:
			c.CollectNow()
		case <-stop:
			return
		}
	}
}

// CollectNow runs one collection cycle immediately: every thread's tree
// is taken and merged into the accumulated totals, a fresh snapshot is
// published, and this cycle's per-tracepoint stats go to the sinks.
func (c *Collector) CollectNow() Snapshot {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	cycleStart := c.lastCycleEnd
	now := c.timeTeller.CurrentTime()

	cycleTree := calltree.NewRoot()
	for _, t := range c.allThreads() {
		calltree.Accumulate(cycleTree, t.buildAndReset())
	}
	calltree.Accumulate(c.accumulated, cycleTree)

	snap := Snapshot{
		CycleStart: cycleStart,
		CycleEnd:   now,
		Tree:       calltree.Clone(c.accumulated),
		FlatStats:  calltree.ComputeFlatStats(c.accumulated),
	}

	c.lastCycleEnd = now
	c.publish(snap)

	c.emit(cycleStart, now, calltree.ComputeFlatStats(cycleTree))

	return snap
}

// ResetStats discards everything accumulated so far, including the
// threads' partial data, and publishes an empty snapshot. Calls that are
// open right now keep being timed.
func (c *Collector) ResetStats() {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	for _, t := range c.allThreads() {
		t.buildAndReset()
	}

	now := c.timeTeller.CurrentTime()
	c.accumulated = calltree.NewRoot()
	c.lastCycleEnd = now

	c.publish(Snapshot{
		CycleStart: now,
		CycleEnd:   now,
		Tree:       calltree.NewRoot(),
	})
}

// Latest returns the most recently published snapshot.
func (c *Collector) Latest() Snapshot {
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()

	return c.snapshot
}

// Registry returns the tracepoint registry the collector records against.
func (c *Collector) Registry() *tracepoint.Registry {
	return c.registry
}

// Threads returns all registered thread recorders.
func (c *Collector) Threads() []*ThreadRecorder {
	return c.allThreads()
}

func (c *Collector) allThreads() []*ThreadRecorder {
	c.threadsMu.Lock()
	defer c.threadsMu.Unlock()

	out := make([]*ThreadRecorder, len(c.threads))
	copy(out, c.threads)

	return out
}

func (c *Collector) publish(snap Snapshot) {
	c.snapshotMu.Lock()
	c.snapshot = snap
	c.snapshotMu.Unlock()
}

// emit sends this cycle's activity to the sinks, one entry per
// tracepoint.
func (c *Collector) emit(
	cycleStart, cycleEnd timing.Time,
	stats []calltree.FlatStat,
) {
	for _, sink := range c.sinks {
		for _, s := range stats {
			sink.AddEntry(recording.Entry{
				CycleStart:  cycleStart,
				CycleEnd:    cycleEnd,
				Tracepoint:  s.Tracepoint.DisplayName(),
				CallCount:   s.CallCount,
				WallTime:    s.WallTime,
				MaxWallTime: s.MaxWallTime,
			})
		}
	}
}

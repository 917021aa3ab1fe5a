// Package recording persists per-cycle call statistics to files, one row
// per tracepoint per collection cycle.
package recording

import "github.com/sarchlab/calltrace/timing"

// An Entry is the flat total of one tracepoint over one collection cycle.
type Entry struct {
	CycleStart timing.Time
	CycleEnd   timing.Time

	Tracepoint  string
	CallCount   int64
	WallTime    timing.Time
	MaxWallTime timing.Time
}

// A Sink records entries. AddEntry may buffer; Flush forces everything
// buffered so far out.
type Sink interface {
	AddEntry(entry Entry)
	Flush()
}

// Package tracepoint defines the identity of traced entities and the
// registry that maps raw instrumentation identifiers to stable tracepoint
// ids.
package tracepoint

import "sync/atomic"

// Flags selects what is recorded when a traced call occurs.
type Flags int32

const (
	// TraceCallCount records how many times the call occurred.
	TraceCallCount Flags = 1 << iota

	// TraceWallTime records the wall time spent in the call.
	TraceWallTime
)

// TraceAll records both call counts and wall time.
const TraceAll = TraceCallCount | TraceWallTime

// RootID is the reserved id of the Root sentinel. Registered tracepoints
// always have non-negative ids.
const RootID = -1

// A Tracepoint identifies one traced entity, typically a method. Identity is
// the Tracepoint pointer itself: two tracepoints may carry the same display
// name (e.g. overloaded methods) and are still distinct.
type Tracepoint struct {
	id          int
	displayName string
	description string
	flags       atomic.Int32
}

// New creates a tracepoint with the given id and display metadata. The
// tracepoint starts with no flags set.
func New(id int, displayName, description string) *Tracepoint {
	return &Tracepoint{
		id:          id,
		displayName: displayName,
		description: description,
	}
}

// Root anchors every call tree. It is never registered and never enabled.
var Root = New(RootID, "[root]", "synthetic root of all call trees")

// ID returns the stable id assigned at registration.
func (t *Tracepoint) ID() int {
	return t.id
}

// DisplayName returns the short human-readable name.
func (t *Tracepoint) DisplayName() string {
	return t.displayName
}

// Description returns the long-form description.
func (t *Tracepoint) Description() string {
	return t.description
}

// Flags returns the current flag bits. Flags may be mutated by a command
// thread while call trees referencing this tracepoint are being built, so
// the read is atomic.
func (t *Tracepoint) Flags() Flags {
	return Flags(t.flags.Load())
}

// SetFlags replaces the flag bits.
func (t *Tracepoint) SetFlags(f Flags) {
	t.flags.Store(int32(f))
}

// Enabled reports whether any recording flag is set.
func (t *Tracepoint) Enabled() bool {
	return t.Flags()&TraceAll != 0
}

func (t *Tracepoint) String() string {
	return t.displayName
}

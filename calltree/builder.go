package calltree

import (
	"fmt"

	"github.com/sarchlab/calltrace/timing"
	"github.com/sarchlab/calltrace/tracepoint"
)

// A Builder accumulates the call tree of a single thread of execution. It
// keeps a cursor into the tree that mirrors the thread's call stack: Push
// moves the cursor down one level, Pop moves it back up. Builders are not
// safe for concurrent use; the owner must serialize calls externally.
type Builder struct {
	timeTeller timing.TimeTeller

	root    *Node
	current *Node
}

// NewBuilder creates a Builder that reads timestamps from the given
// TimeTeller. The tree starts out as a bare root.
func NewBuilder(timeTeller timing.TimeTeller) *Builder {
	b := &Builder{
		timeTeller: timeTeller,
		root:       NewRoot(),
	}
	b.current = b.root

	return b
}

// Push records the entry into a call. The matching child of the cursor is
// created or reused, its call count bumped and its occurrence clock
// started, according to the tracepoint's flags as they read right now.
// The flags are cached on the node so that the matching Pop and any
// snapshot in between treat the call consistently even if the tracepoint
// is reconfigured mid-flight.
func (b *Builder) Push(key tracepoint.CallKey) {
	child := b.current.getOrCreateChild(key)
	flags := key.Tracepoint.Flags()
	child.flags = flags

	if flags&tracepoint.TraceCallCount != 0 {
		child.CallCount++
	}

	if flags&tracepoint.TraceWallTime != 0 {
		now := b.timeTeller.CurrentTime()
		child.startTime = now
		child.resumedAt = now
	}

	b.current = child
}

// Pop records the exit from a call. The tracepoint must match the one the
// cursor currently sits on; otherwise the entry/exit events are unbalanced,
// a ProtocolError is returned and the tree is left untouched. A successful
// Pop closes the node's open segment and refreshes its maximum call time.
func (b *Builder) Pop(tp *tracepoint.Tracepoint) error {
	child := b.current

	if child.parent == nil {
		return &ProtocolError{Got: tp}
	}

	if child.Key.Tracepoint != tp {
		return &ProtocolError{Expected: child.Key.Tracepoint, Got: tp}
	}

	if child.flags&tracepoint.TraceWallTime != 0 {
		now := b.timeTeller.CurrentTime()
		child.WallTime += now - child.resumedAt

		if d := now - child.startTime; d > child.MaxWallTime {
			child.MaxWallTime = d
		}
	}

	b.current = child.parent

	return nil
}

// BuildAndReset detaches the accumulated tree and starts a fresh one.
//
// Calls that are still open get their running segment flushed into the
// detached tree first, so its times are current as of this moment. The
// fresh tree then restarts with placeholder copies of the open path:
// the copies carry the open-frame state, including the occurrence start
// so the maximum call time still spans snapshot boundaries, but none of
// the counts or time already banked in the detached tree.
func (b *Builder) BuildAndReset() *Node {
	now := b.timeTeller.CurrentTime()
	open := b.openPath()

	for _, node := range open {
		if node.flags&tracepoint.TraceWallTime == 0 {
			continue
		}

		node.WallTime += now - node.resumedAt
		node.resumedAt = now

		if d := now - node.startTime; d > node.MaxWallTime {
			node.MaxWallTime = d
		}
	}

	detached := b.root
	b.root = NewRoot()
	b.current = b.root

	for _, node := range open {
		copied := b.current.getOrCreateChild(node.Key)
		copied.flags = node.flags
		copied.startTime = node.startTime
		copied.resumedAt = node.resumedAt
		b.current = copied
	}

	return detached
}

// openPath returns the nodes with open frames, outermost first. The root
// is not part of it as it is never entered or exited.
func (b *Builder) openPath() []*Node {
	depth := 0
	for n := b.current; n.parent != nil; n = n.parent {
		depth++
	}

	path := make([]*Node, depth)
	for n := b.current; n.parent != nil; n = n.parent {
		depth--
		path[depth] = n
	}

	return path
}

// A ProtocolError reports an exit event that does not pair with the
// innermost open entry event.
type ProtocolError struct {
	// Expected is the tracepoint of the innermost open call, nil if no
	// call was open at all.
	Expected *tracepoint.Tracepoint

	// Got is the tracepoint the exit event named.
	Got *tracepoint.Tracepoint
}

func (e *ProtocolError) Error() string {
	if e.Expected == nil {
		return fmt.Sprintf(
			"unbalanced call exit: no call is open, got exit from %s",
			e.Got)
	}

	return fmt.Sprintf(
		"unbalanced call exit: expected exit from %s, got exit from %s",
		e.Expected, e.Got)
}

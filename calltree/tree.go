// Package calltree reconstructs call trees from entry/exit events, merges
// trees collected from many threads, and flattens a tree into recursion-
// adjusted per-tracepoint statistics.
package calltree

import (
	"github.com/sarchlab/calltrace/timing"
	"github.com/sarchlab/calltrace/tracepoint"
)

// A Node is one position in a call tree: a (tracepoint, argument-key) pair
// reached through one particular chain of callers. The same call key can
// appear at many positions in a tree; each position is a distinct node.
//
// WallTime spans the whole occurrence of a call, from entry to exit, so a
// node's time includes the time of its children. ComputeFlatStats undoes
// the double counting that this implies for recursive calls.
type Node struct {
	Key         tracepoint.CallKey
	CallCount   int64
	WallTime    timing.Time
	MaxWallTime timing.Time

	parent   *Node
	children map[tracepoint.CallKey]*Node
	order    []*Node

	// Open-frame state. startTime is when the current logical occurrence
	// began; it survives snapshot cycles so the maximum call time tracks
	// the occurrence end to end. resumedAt is when the current open
	// segment began, either the entry itself or the latest snapshot.
	// flags is the tracepoint's flag word captured at entry.
	flags     tracepoint.Flags
	startTime timing.Time
	resumedAt timing.Time
}

// NewRoot creates an empty tree: a parentless node owned by the Root
// sentinel. Only root nodes lack a parent.
func NewRoot() *Node {
	return newNode(tracepoint.SimpleCall(tracepoint.Root), nil)
}

func newNode(key tracepoint.CallKey, parent *Node) *Node {
	return &Node{
		Key:      key,
		parent:   parent,
		children: make(map[tracepoint.CallKey]*Node),
	}
}

// Child returns the child with the given key, or nil.
func (n *Node) Child(key tracepoint.CallKey) *Node {
	return n.children[key]
}

// Children returns the node's children in insertion order. The returned
// slice is the node's own bookkeeping and must not be modified.
func (n *Node) Children() []*Node {
	return n.order
}

// NumChildren returns the number of distinct call keys below this node.
func (n *Node) NumChildren() int {
	return len(n.order)
}

func (n *Node) getOrCreateChild(key tracepoint.CallKey) *Node {
	child, ok := n.children[key]
	if !ok {
		child = newNode(key, n)
		n.children[key] = child
		n.order = append(n.order, child)
	}

	return child
}

// Clone deep-copies a tree. The copy carries counts and times but no
// open-frame state, so it is safe to hand to another goroutine while the
// original keeps changing.
func Clone(n *Node) *Node {
	c := newNode(n.Key, nil)
	Accumulate(c, n)

	return c
}

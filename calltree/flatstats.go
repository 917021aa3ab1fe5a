package calltree

import (
	"github.com/sarchlab/calltrace/timing"
	"github.com/sarchlab/calltrace/tracepoint"
)

// A FlatStat is the tree-position-independent total for one tracepoint.
// All argument keys of the tracepoint fold into the same entry.
type FlatStat struct {
	Tracepoint  *tracepoint.Tracepoint
	CallCount   int64
	WallTime    timing.Time
	MaxWallTime timing.Time
}

// ComputeFlatStats folds a call tree into per-tracepoint totals. The root
// itself gets no entry. Stats come back in the order the walk first meets
// each tracepoint, which is insertion order within every node.
//
// Node wall time includes the time of callees, so summing every node of a
// recursive tracepoint would count the same wall-clock span once per stack
// depth. The walk therefore keeps the set of tracepoints already open on
// the current path: nodes of a tracepoint that is its own ancestor add
// their call count but neither their wall time nor their maximum.
func ComputeFlatStats(root *Node) []FlatStat {
	stats := make(map[*tracepoint.Tracepoint]*FlatStat)
	var order []*tracepoint.Tracepoint
	onPath := make(map[*tracepoint.Tracepoint]struct{})

	var visit func(n *Node)
	visit = func(n *Node) {
		for _, child := range n.order {
			tp := child.Key.Tracepoint

			stat, ok := stats[tp]
			if !ok {
				stat = &FlatStat{Tracepoint: tp}
				stats[tp] = stat
				order = append(order, tp)
			}

			stat.CallCount += child.CallCount

			if _, recursive := onPath[tp]; recursive {
				visit(child)
				continue
			}

			stat.WallTime += child.WallTime
			if child.MaxWallTime > stat.MaxWallTime {
				stat.MaxWallTime = child.MaxWallTime
			}

			onPath[tp] = struct{}{}
			visit(child)
			delete(onPath, tp)
		}
	}
	visit(root)

	out := make([]FlatStat, len(order))
	for i, tp := range order {
		out[i] = *stats[tp]
	}

	return out
}

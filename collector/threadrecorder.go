package collector

import (
	"sync"

	"github.com/rs/xid"

	"github.com/sarchlab/calltrace/calltree"
	"github.com/sarchlab/calltrace/tracepoint"
)

// A ThreadRecorder receives the call entry and exit events of one
// thread of execution. Its methods must be called from that thread
// only; the recorder's lock exists for the collector taking the tree,
// not for concurrent recording.
type ThreadRecorder struct {
	id       string
	name     string
	registry *tracepoint.Registry

	mu      sync.Mutex
	builder *calltree.Builder
}

// RegisterThread creates a recorder for one thread and adds it to the
// collector's collection cycle.
func (c *Collector) RegisterThread(name string) *ThreadRecorder {
	t := &ThreadRecorder{
		id:       xid.New().String(),
		name:     name,
		registry: c.registry,
		builder:  calltree.NewBuilder(c.timeTeller),
	}

	c.threadsMu.Lock()
	c.threads = append(c.threads, t)
	c.threadsMu.Unlock()

	return t
}

// ID returns the recorder's unique id.
func (t *ThreadRecorder) ID() string {
	return t.id
}

// Name returns the thread name given at registration.
func (t *ThreadRecorder) Name() string {
	return t.name
}

// Enter records entry into the tracepoint with the given id. Ids that
// the registry never assigned are ignored.
func (t *ThreadRecorder) Enter(id int) {
	tp := t.registry.ByID(id)
	if tp == nil {
		return
	}

	t.mu.Lock()
	t.builder.Push(tracepoint.SimpleCall(tp))
	t.mu.Unlock()
}

// EnterCall records entry into the tracepoint with the given id,
// keeping calls with different argument keys apart in the tree.
func (t *ThreadRecorder) EnterCall(id int, argKey string) {
	tp := t.registry.ByID(id)
	if tp == nil {
		return
	}

	t.mu.Lock()
	t.builder.Push(tracepoint.CallWithArg(tp, argKey))
	t.mu.Unlock()
}

// Leave records exit from the tracepoint with the given id. Ids that the
// registry never assigned are ignored. An exit that does not match the
// innermost open call returns a *calltree.ProtocolError.
func (t *ThreadRecorder) Leave(id int) error {
	tp := t.registry.ByID(id)
	if tp == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.builder.Pop(tp)
}

// buildAndReset takes the thread's tree since the last cycle.
func (t *ThreadRecorder) buildAndReset() *calltree.Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.builder.BuildAndReset()
}

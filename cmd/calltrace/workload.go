package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/calltrace/collector"
	"github.com/sarchlab/calltrace/tracepoint"
)

// demoTracepoints holds the tracepoint ids of the synthetic service.
type demoTracepoints struct {
	handle int
	parse  int
	query  int
	render int
	fib    int
}

// registerDemoTracepoints describes the synthetic service to the registry.
// The fib method is enabled by member name and resolved through LookupID,
// the way an instrumentation agent discovers signatures at load time.
func registerDemoTracepoints(r *tracepoint.Registry) demoTracepoints {
	ids := demoTracepoints{
		handle: r.TraceSpecific(
			"demo.Server", "handleRequest", "(Request)V", tracepoint.TraceAll),
		parse: r.TraceSpecific(
			"demo.Server", "parseRequest", "(Request)V", tracepoint.TraceAll),
		query: r.TraceSpecific(
			"demo.Store", "query", "(String)V", tracepoint.TraceAll),
		render: r.TraceSpecific(
			"demo.Server", "renderResponse", "(Response)V", tracepoint.TraceAll),
	}

	r.TraceMembers("demo.Math", "fib", tracepoint.TraceAll)
	ids.fib, _ = r.LookupID("demo.Math", "fib", "(I)I")

	return ids
}

var demoTables = []string{"users", "orders", "items"}

// A demoWorker replays one synthetic request loop on its own recorder.
type demoWorker struct {
	recorder *collector.ThreadRecorder
	ids      demoTracepoints
	seq      int
}

func (w *demoWorker) handleRequest() {
	w.recorder.Enter(w.ids.handle)

	w.parseRequest()
	w.queryStore(demoTables[w.seq%len(demoTables)])
	w.fib(w.seq%7 + 3)
	w.renderResponse()

	w.seq++

	dieOnErr(w.recorder.Leave(w.ids.handle))
}

func (w *demoWorker) parseRequest() {
	w.recorder.Enter(w.ids.parse)

	time.Sleep(200 * time.Microsecond)

	dieOnErr(w.recorder.Leave(w.ids.parse))
}

func (w *demoWorker) queryStore(table string) {
	w.recorder.EnterCall(w.ids.query, table)

	time.Sleep(500 * time.Microsecond)

	dieOnErr(w.recorder.Leave(w.ids.query))
}

func (w *demoWorker) renderResponse() {
	w.recorder.Enter(w.ids.render)

	time.Sleep(300 * time.Microsecond)

	dieOnErr(w.recorder.Leave(w.ids.render))
}

func (w *demoWorker) fib(n int) int {
	w.recorder.Enter(w.ids.fib)
	defer func() { dieOnErr(w.recorder.Leave(w.ids.fib)) }()

	if n < 2 {
		return n
	}

	return w.fib(n-1) + w.fib(n-2)
}

// runDemoWorkload drives numWorkers request loops against the collector
// until the duration elapses.
func runDemoWorkload(
	c *collector.Collector,
	ids demoTracepoints,
	numWorkers int,
	duration time.Duration,
) {
	var wg sync.WaitGroup

	deadline := time.Now().Add(duration)

	for i := 0; i < numWorkers; i++ {
		recorder := c.RegisterThread(fmt.Sprintf("demo-worker-%d", i))

		wg.Add(1)

		go func() {
			defer wg.Done()

			w := demoWorker{recorder: recorder, ids: ids}
			for time.Now().Before(deadline) {
				w.handleRequest()
			}
		}()
	}

	wg.Wait()
}

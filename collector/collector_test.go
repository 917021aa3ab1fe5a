package collector

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/calltrace/calltree"
	"github.com/sarchlab/calltrace/recording"
	"github.com/sarchlab/calltrace/timing"
	"github.com/sarchlab/calltrace/tracepoint"
)

type captureSink struct {
	mu      sync.Mutex
	entries []recording.Entry
}

func (s *captureSink) AddEntry(e recording.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
}

func (s *captureSink) Flush() {}

func (s *captureSink) all() []recording.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]recording.Entry, len(s.entries))
	copy(out, s.entries)

	return out
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

var _ = Describe("Builder", func() {
	var registry *tracepoint.Registry

	BeforeEach(func() {
		registry = tracepoint.NewRegistry()
	})

	It("should panic when the time teller is missing", func() {
		Expect(func() {
			MakeBuilder().WithRegistry(registry).Build()
		}).To(PanicWith("timeTeller is not set"))
	})

	It("should panic when the registry is missing", func() {
		Expect(func() {
			MakeBuilder().WithTimeTeller(timing.SystemClock{}).Build()
		}).To(PanicWith("registry is not set"))
	})

	It("should panic when the interval is not positive", func() {
		Expect(func() {
			MakeBuilder().
				WithTimeTeller(timing.SystemClock{}).
				WithRegistry(registry).
				WithInterval(0).
				Build()
		}).To(PanicWith("interval must be positive"))
	})
})

var _ = Describe("Collector", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		registry   *tracepoint.Registry
		sink       *captureSink
		c          *Collector

		idA, idB int
		tpA, tpB *tracepoint.Tracepoint
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)

		registry = tracepoint.NewRegistry()
		idA = registry.TraceSpecific(
			"svc.Handler", "handle", "(Req)V", tracepoint.TraceAll)
		idB = registry.TraceSpecific(
			"svc.Store", "get", "(Key)V", tracepoint.TraceAll)
		tpA = registry.ByID(idA)
		tpB = registry.ByID(idB)

		sink = &captureSink{}
		c = MakeBuilder().
			WithTimeTeller(timeTeller).
			WithRegistry(registry).
			WithSink(sink).
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	statFor := func(
		stats []calltree.FlatStat,
		tp *tracepoint.Tracepoint,
	) calltree.FlatStat {
		GinkgoHelper()

		for _, s := range stats {
			if s.Tracepoint == tp {
				return s
			}
		}

		Fail("no stat for " + tp.DisplayName())
		return calltree.FlatStat{}
	}

	It("should merge trees from all registered threads", func() {
		t1 := c.RegisterThread("worker-1")
		t2 := c.RegisterThread("worker-2")

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(10))
		t1.Enter(idA)
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(30))
		Expect(t1.Leave(idA)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(15))
		t2.Enter(idA)
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(20))
		t2.Enter(idB)
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(25))
		Expect(t2.Leave(idB)).To(Succeed())
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(35))
		Expect(t2.Leave(idA)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(40)).Times(3)
		snap := c.CollectNow()

		Expect(snap.CycleStart).To(Equal(timing.Time(0)))
		Expect(snap.CycleEnd).To(Equal(timing.Time(40)))

		a := statFor(snap.FlatStats, tpA)
		Expect(a.CallCount).To(Equal(int64(2)))
		Expect(a.WallTime).To(Equal(timing.Time(40)))
		Expect(a.MaxWallTime).To(Equal(timing.Time(20)))

		b := statFor(snap.FlatStats, tpB)
		Expect(b.CallCount).To(Equal(int64(1)))
		Expect(b.WallTime).To(Equal(timing.Time(5)))

		nodeA := snap.Tree.Child(tracepoint.SimpleCall(tpA))
		Expect(nodeA).NotTo(BeNil())
		Expect(nodeA.Child(tracepoint.SimpleCall(tpB))).NotTo(BeNil())
	})

	It("should accumulate totals across cycles", func() {
		t := c.RegisterThread("worker")

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(10))
		t.Enter(idA)
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(30))
		Expect(t.Leave(idA)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(40)).Times(2)
		first := c.CollectNow()

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(50))
		t.Enter(idA)
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(55))
		Expect(t.Leave(idA)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(60)).Times(2)
		second := c.CollectNow()

		Expect(second.CycleStart).To(Equal(timing.Time(40)))
		Expect(second.CycleEnd).To(Equal(timing.Time(60)))

		a := statFor(second.FlatStats, tpA)
		Expect(a.CallCount).To(Equal(int64(2)))
		Expect(a.WallTime).To(Equal(timing.Time(25)))
		Expect(a.MaxWallTime).To(Equal(timing.Time(20)))

		// The earlier snapshot is a private copy; later cycles must not
		// change it.
		firstA := statFor(first.FlatStats, tpA)
		Expect(firstA.CallCount).To(Equal(int64(1)))
		Expect(firstA.WallTime).To(Equal(timing.Time(20)))
		Expect(first.Tree.Child(tracepoint.SimpleCall(tpA)).CallCount).
			To(Equal(int64(1)))

		latest := statFor(c.Latest().FlatStats, tpA)
		Expect(latest.CallCount).To(Equal(int64(2)))
	})

	It("should record each cycle's delta to the sinks", func() {
		t := c.RegisterThread("worker")

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(10))
		t.Enter(idA)
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(30))
		Expect(t.Leave(idA)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(40)).Times(2)
		c.CollectNow()

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(50))
		t.Enter(idA)
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(55))
		Expect(t.Leave(idA)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(60)).Times(2)
		c.CollectNow()

		entries := sink.all()
		Expect(entries).To(HaveLen(2))

		Expect(entries[0]).To(Equal(recording.Entry{
			CycleStart:  0,
			CycleEnd:    40,
			Tracepoint:  "Handler.handle",
			CallCount:   1,
			WallTime:    20,
			MaxWallTime: 20,
		}))
		Expect(entries[1]).To(Equal(recording.Entry{
			CycleStart:  40,
			CycleEnd:    60,
			Tracepoint:  "Handler.handle",
			CallCount:   1,
			WallTime:    5,
			MaxWallTime: 5,
		}))
	})

	It("should clear totals on ResetStats", func() {
		t := c.RegisterThread("worker")

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(10))
		t.Enter(idA)
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(30))
		Expect(t.Leave(idA)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(40)).Times(2)
		c.CollectNow()

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(50)).Times(2)
		c.ResetStats()

		snap := c.Latest()
		Expect(snap.CycleStart).To(Equal(timing.Time(50)))
		Expect(snap.CycleEnd).To(Equal(timing.Time(50)))
		Expect(snap.Tree.NumChildren()).To(Equal(0))
		Expect(snap.FlatStats).To(BeEmpty())

		// The next cycle starts from nothing.
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(70))
		t.Enter(idA)
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(75))
		Expect(t.Leave(idA)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(80)).Times(2)
		after := c.CollectNow()

		a := statFor(after.FlatStats, tpA)
		Expect(a.CallCount).To(Equal(int64(1)))
		Expect(a.WallTime).To(Equal(timing.Time(5)))
	})

	It("should keep timing calls that are open across ResetStats", func() {
		t := c.RegisterThread("worker")

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(10))
		t.Enter(idA)

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(20)).Times(2)
		c.ResetStats()

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(30))
		Expect(t.Leave(idA)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(40)).Times(2)
		snap := c.CollectNow()

		// The entry itself was discarded with the reset, so only the time
		// after the reset counts, but the maximum still covers the whole
		// call.
		a := statFor(snap.FlatStats, tpA)
		Expect(a.CallCount).To(Equal(int64(0)))
		Expect(a.WallTime).To(Equal(timing.Time(10)))
		Expect(a.MaxWallTime).To(Equal(timing.Time(20)))
	})

	It("should ignore ids the registry never assigned", func() {
		t := c.RegisterThread("worker")

		t.Enter(999)
		Expect(t.Leave(999)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(10)).Times(2)
		snap := c.CollectNow()

		Expect(snap.FlatStats).To(BeEmpty())
		Expect(snap.Tree.NumChildren()).To(Equal(0))
	})

	It("should surface unbalanced exits from the recorder", func() {
		t := c.RegisterThread("worker")

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(10))
		t.Enter(idA)

		err := t.Leave(idB)
		var protoErr *calltree.ProtocolError
		Expect(errors.As(err, &protoErr)).To(BeTrue())
		Expect(protoErr.Expected).To(BeIdenticalTo(tpA))
		Expect(protoErr.Got).To(BeIdenticalTo(tpB))

		// The recorder is still usable after the bad exit.
		timeTeller.EXPECT().CurrentTime().Return(timing.Time(30))
		Expect(t.Leave(idA)).To(Succeed())

		timeTeller.EXPECT().CurrentTime().Return(timing.Time(40)).Times(2)
		snap := c.CollectNow()

		a := statFor(snap.FlatStats, tpA)
		Expect(a.CallCount).To(Equal(int64(1)))
		Expect(a.WallTime).To(Equal(timing.Time(20)))
	})

	It("should report its registered threads", func() {
		t1 := c.RegisterThread("worker-1")
		t2 := c.RegisterThread("worker-2")

		threads := c.Threads()
		Expect(threads).To(HaveLen(2))
		Expect(threads[0].Name()).To(Equal("worker-1"))
		Expect(threads[1].Name()).To(Equal("worker-2"))
		Expect(t1.ID()).NotTo(BeEmpty())
		Expect(t1.ID()).NotTo(Equal(t2.ID()))

		Expect(c.Registry()).To(BeIdenticalTo(registry))
	})

	It("should collect periodically between Start and Stop", func() {
		clocked := MakeBuilder().
			WithTimeTeller(timing.SystemClock{}).
			WithRegistry(registry).
			WithInterval(2 * time.Millisecond).
			WithSink(sink).
			Build()

		t := clocked.RegisterThread("worker")
		t.Enter(idA)
		Expect(t.Leave(idA)).To(Succeed())

		clocked.Start()
		clocked.Start()

		Eventually(sink.count).Should(BeNumerically(">=", 1))

		clocked.Stop()
		clocked.Stop()

		a := statFor(clocked.Latest().FlatStats, tpA)
		Expect(a.CallCount).To(Equal(int64(1)))
	})
})

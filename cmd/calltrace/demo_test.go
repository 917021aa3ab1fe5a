package main

import (
	"bytes"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spf13/cobra"

	"github.com/sarchlab/calltrace/calltree"
	"github.com/sarchlab/calltrace/collector"
	"github.com/sarchlab/calltrace/timing"
	"github.com/sarchlab/calltrace/tracepoint"
)

var _ = Describe("Demo workload", func() {
	var (
		registry *tracepoint.Registry
		ids      demoTracepoints
		c        *collector.Collector
	)

	BeforeEach(func() {
		registry = tracepoint.NewRegistry()
		ids = registerDemoTracepoints(registry)

		c = collector.MakeBuilder().
			WithTimeTeller(timing.SystemClock{}).
			WithRegistry(registry).
			Build()
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

	It("should profile the synthetic service", func() {
		runDemoWorkload(c, ids, 2, 50*time.Millisecond)

		snap := c.CollectNow()

		handleTp := registry.ByID(ids.handle)
		fibTp := registry.ByID(ids.fib)
		queryTp := registry.ByID(ids.query)

		handleStat := statFor(snap.FlatStats, handleTp)
		Expect(handleStat.CallCount).To(BeNumerically(">=", 1))
		Expect(handleStat.WallTime).To(BeNumerically(">", 0))
		Expect(handleStat.MaxWallTime).
			To(BeNumerically("<=", handleStat.WallTime))

		// Every request runs several recursive fib calls.
		fibStat := statFor(snap.FlatStats, fibTp)
		Expect(fibStat.CallCount).To(BeNumerically(">", handleStat.CallCount))

		// Recursion must not inflate fib's time beyond its caller's.
		Expect(fibStat.WallTime).To(BeNumerically("<=", handleStat.WallTime))

		// Store queries stay apart per argument key.
		handleNode := snap.Tree.Child(tracepoint.SimpleCall(handleTp))
		Expect(handleNode).NotTo(BeNil())
		Expect(handleNode.Child(tracepoint.CallWithArg(queryTp, "users"))).
			NotTo(BeNil())
	})

	It("should print a flat table of the busiest tracepoints", func() {
		runDemoWorkload(c, ids, 1, 30*time.Millisecond)

		snap := c.CollectNow()

		buf := bytes.Buffer{}
		printFlatTable(&buf, snap)

		Expect(buf.String()).To(ContainSubstring("TRACEPOINT"))
		Expect(buf.String()).To(ContainSubstring("Server.handleRequest"))
		Expect(buf.String()).To(ContainSubstring("Store.query"))
		Expect(buf.String()).To(ContainSubstring("Math.fib"))
	})
})

var _ = Describe("Flag env fallback", func() {
	var cmd *cobra.Command

	BeforeEach(func() {
		cmd = &cobra.Command{Use: "scratch"}
		cmd.Flags().String("csv", "", "")
		cmd.Flags().Int("port", 3001, "")
	})

	It("should fall back to the environment for unset flags", func() {
		os.Setenv("CALLTRACE_CSV", "from-env.csv")
		os.Setenv("CALLTRACE_HTTP", "4321")
		DeferCleanup(os.Unsetenv, "CALLTRACE_CSV")
		DeferCleanup(os.Unsetenv, "CALLTRACE_HTTP")

		Expect(stringFlagOrEnv(cmd, "csv", "CALLTRACE_CSV")).
			To(Equal("from-env.csv"))
		Expect(intFlagOrEnv(cmd, "port", "CALLTRACE_HTTP")).
			To(Equal(4321))
	})

	It("should prefer an explicitly set flag over the environment", func() {
		os.Setenv("CALLTRACE_CSV", "from-env.csv")
		DeferCleanup(os.Unsetenv, "CALLTRACE_CSV")

		Expect(cmd.Flags().Set("csv", "explicit.csv")).To(Succeed())

		Expect(stringFlagOrEnv(cmd, "csv", "CALLTRACE_CSV")).
			To(Equal("explicit.csv"))
	})

	It("should use the flag default when nothing else is given", func() {
		Expect(intFlagOrEnv(cmd, "port", "CALLTRACE_HTTP")).To(Equal(3001))
	})
})

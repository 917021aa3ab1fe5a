package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sarchlab/calltrace/calltree"
	"github.com/sarchlab/calltrace/collector"
	"github.com/sarchlab/calltrace/monitoring"
	"github.com/sarchlab/calltrace/recording"
	"github.com/sarchlab/calltrace/timing"
	"github.com/sarchlab/calltrace/tracepoint"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a self-profiled demo workload.",
	Long: "`demo` runs a synthetic service under the profiler, serves live " +
		"statistics over HTTP while it runs, and prints a summary table " +
		"at the end.",
	Run: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().Int("port", 3001,
		"Port of the monitoring server ($CALLTRACE_HTTP)")
	demoCmd.Flags().Int("refresh-ms", 1000,
		"Collection cycle period in milliseconds ($CALLTRACE_REFRESH_MS)")
	demoCmd.Flags().String("csv", "",
		"Record per-cycle stats to this CSV file ($CALLTRACE_CSV)")
	demoCmd.Flags().String("sqlite", "",
		"Record per-cycle stats to this SQLite file ($CALLTRACE_SQLITE)")
	demoCmd.Flags().Duration("duration", 10*time.Second,
		"How long to run the workload")
	demoCmd.Flags().Int("workers", 4,
		"Number of demo worker threads")
	demoCmd.Flags().Bool("open", false,
		"Open the monitor page in a browser")
}

func runDemo(cmd *cobra.Command, _ []string) {
	loadDotEnv()

	port := intFlagOrEnv(cmd, "port", "CALLTRACE_HTTP")
	refreshMS := intFlagOrEnv(cmd, "refresh-ms", "CALLTRACE_REFRESH_MS")
	csvFile := stringFlagOrEnv(cmd, "csv", "CALLTRACE_CSV")
	sqliteFile := stringFlagOrEnv(cmd, "sqlite", "CALLTRACE_SQLITE")

	duration, err := cmd.Flags().GetDuration("duration")
	dieOnErr(err)

	numWorkers, err := cmd.Flags().GetInt("workers")
	dieOnErr(err)

	open, err := cmd.Flags().GetBool("open")
	dieOnErr(err)

	registry := tracepoint.NewRegistry()
	ids := registerDemoTracepoints(registry)

	builder := collector.MakeBuilder().
		WithTimeTeller(timing.SystemClock{}).
		WithRegistry(registry).
		WithInterval(time.Duration(refreshMS) * time.Millisecond)

	sinks := []recording.Sink{}
	if csvFile != "" {
		sink := recording.NewCSVSink(csvFile)
		sinks = append(sinks, sink)
		builder = builder.WithSink(sink)
	}

	if sqliteFile != "" {
		sink := recording.NewSQLiteSink(sqliteFile)
		sinks = append(sinks, sink)
		builder = builder.WithSink(sink)
	}

	c := builder.Build()

	m := monitoring.NewMonitor().
		WithPortNumber(port).
		WithCollector(c).
		WithRegistry(registry)
	if open {
		m.WithOpenBrowser()
	}

	m.StartServer()
	c.Start()

	bar := m.CreateProgressBar(
		"demo workload", uint64(duration.Milliseconds()))
	go trackProgress(bar, duration)

	runDemoWorkload(c, ids, numWorkers, duration)

	c.Stop()
	snap := c.CollectNow()

	m.CompleteProgressBar(bar)

	printFlatTable(os.Stdout, snap)

	for _, sink := range sinks {
		sink.Flush()
	}
}

// loadDotEnv reads .env from the working directory if one exists, so the
// CALLTRACE_* variables can be kept next to the project.
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Cannot load .env: %s\n", err)
	}
}

// stringFlagOrEnv resolves a flag with an environment fallback: an
// explicitly set flag wins, then the environment variable, then the flag's
// default.
func stringFlagOrEnv(cmd *cobra.Command, name, envKey string) string {
	value, err := cmd.Flags().GetString(name)
	dieOnErr(err)

	if !cmd.Flags().Changed(name) {
		if env, ok := os.LookupEnv(envKey); ok {
			return env
		}
	}

	return value
}

func intFlagOrEnv(cmd *cobra.Command, name, envKey string) int {
	value, err := cmd.Flags().GetInt(name)
	dieOnErr(err)

	if !cmd.Flags().Changed(name) {
		if env, ok := os.LookupEnv(envKey); ok {
			parsed, err := strconv.Atoi(env)
			dieOnErr(err)

			return parsed
		}
	}

	return value
}

func trackProgress(bar *monitoring.ProgressBar, duration time.Duration) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for done := time.Duration(0); done < duration; done += 100 * time.Millisecond {
		<-ticker.C
		bar.IncrementFinished(100)
	}
}

// printFlatTable writes the snapshot's per-tracepoint totals as an aligned
// table, busiest first.
func printFlatTable(w io.Writer, snap collector.Snapshot) {
	stats := make([]calltree.FlatStat, len(snap.FlatStats))
	copy(stats, snap.FlatStats)

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].WallTime > stats[j].WallTime
	})

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "TRACEPOINT\tCALLS\tWALL TIME\tMAX CALL")

	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%v\t%v\n",
			s.Tracepoint.DisplayName(), s.CallCount,
			s.WallTime.Std(), s.MaxWallTime.Std())
	}

	err := tw.Flush()
	dieOnErr(err)
}

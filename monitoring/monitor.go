// Package monitoring exposes live call statistics over HTTP so external
// dashboards can watch a profiled process.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/calltrace/calltree"
	"github.com/sarchlab/calltrace/collector"
	"github.com/sarchlab/calltrace/fuzzysearch"
	"github.com/sarchlab/calltrace/tracepoint"
)

// Monitor serves the collector's latest snapshot and the tracepoint
// catalog as a JSON API.
type Monitor struct {
	collector   *collector.Collector
	registry    *tracepoint.Registry
	portNumber  int
	openBrowser bool

	searcherLock   sync.Mutex
	cachedSearcher *fuzzysearch.CachedSearcher

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithCollector sets the collector whose snapshots are served.
func (m *Monitor) WithCollector(c *collector.Collector) *Monitor {
	m.collector = c
	return m
}

// WithRegistry sets the tracepoint registry behind the catalog and the
// search endpoint.
func (m *Monitor) WithRegistry(r *tracepoint.Registry) *Monitor {
	m.registry = r
	return m
}

// WithOpenBrowser makes StartServer open the monitor page in the system
// browser once the server is bound.
func (m *Monitor) WithOpenBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the monitor page.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// StartServer starts the monitor as a web server with a custom port if
// wanted.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/flat", m.flatStats)
	r.HandleFunc("/api/tree", m.tree)
	r.HandleFunc("/api/threads", m.listThreads)
	r.HandleFunc("/api/tracepoints", m.listTracepoints)
	r.HandleFunc("/api/tracepoint/{id}", m.tracepointDetails)
	r.HandleFunc("/api/search", m.search)
	r.HandleFunc("/api/reset", m.resetStats)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/state", m.collectorState)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring call statistics with %s\n", url)

	if m.openBrowser {
		err := browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open the browser: %s\n", err)
		}
	}

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

type flatStatRsp struct {
	TracepointID int    `json:"tracepoint_id"`
	Tracepoint   string `json:"tracepoint"`
	CallCount    int64  `json:"call_count"`
	WallTime     int64  `json:"wall_time"`
	MaxWallTime  int64  `json:"max_wall_time"`
}

type flatRsp struct {
	CycleStart int64         `json:"cycle_start"`
	CycleEnd   int64         `json:"cycle_end"`
	Stats      []flatStatRsp `json:"stats"`
}

func (m *Monitor) flatStats(w http.ResponseWriter, _ *http.Request) {
	snap := m.collector.Latest()

	rsp := flatRsp{
		CycleStart: int64(snap.CycleStart),
		CycleEnd:   int64(snap.CycleEnd),
		Stats:      make([]flatStatRsp, 0, len(snap.FlatStats)),
	}

	for _, s := range snap.FlatStats {
		rsp.Stats = append(rsp.Stats, flatStatRsp{
			TracepointID: s.Tracepoint.ID(),
			Tracepoint:   s.Tracepoint.DisplayName(),
			CallCount:    s.CallCount,
			WallTime:     int64(s.WallTime),
			MaxWallTime:  int64(s.MaxWallTime),
		})
	}

	sort.Slice(rsp.Stats, func(i, j int) bool {
		if rsp.Stats[i].WallTime != rsp.Stats[j].WallTime {
			return rsp.Stats[i].WallTime > rsp.Stats[j].WallTime
		}

		return rsp.Stats[i].CallCount > rsp.Stats[j].CallCount
	})

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type treeNodeRsp struct {
	TracepointID int           `json:"tracepoint_id"`
	Tracepoint   string        `json:"tracepoint"`
	ArgKey       string        `json:"arg_key,omitempty"`
	CallCount    int64         `json:"call_count"`
	WallTime     int64         `json:"wall_time"`
	MaxWallTime  int64         `json:"max_wall_time"`
	Children     []treeNodeRsp `json:"children,omitempty"`
}

type treeRsp struct {
	CycleStart int64       `json:"cycle_start"`
	CycleEnd   int64       `json:"cycle_end"`
	Root       treeNodeRsp `json:"root"`
}

func (m *Monitor) tree(w http.ResponseWriter, _ *http.Request) {
	snap := m.collector.Latest()
	if snap.Tree == nil {
		snap.Tree = calltree.NewRoot()
	}

	rsp := treeRsp{
		CycleStart: int64(snap.CycleStart),
		CycleEnd:   int64(snap.CycleEnd),
		Root:       treeNode(snap.Tree),
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func treeNode(n *calltree.Node) treeNodeRsp {
	rsp := treeNodeRsp{
		TracepointID: n.Key.Tracepoint.ID(),
		Tracepoint:   n.Key.Tracepoint.DisplayName(),
		ArgKey:       n.Key.ArgKey,
		CallCount:    n.CallCount,
		WallTime:     int64(n.WallTime),
		MaxWallTime:  int64(n.MaxWallTime),
	}

	for _, c := range n.Children() {
		rsp.Children = append(rsp.Children, treeNode(c))
	}

	return rsp
}

type threadRsp struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (m *Monitor) listThreads(w http.ResponseWriter, _ *http.Request) {
	threads := m.collector.Threads()

	rsp := make([]threadRsp, 0, len(threads))
	for _, t := range threads {
		rsp = append(rsp, threadRsp{ID: t.ID(), Name: t.Name()})
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type tracepointRsp struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Flags       int    `json:"flags"`
	Enabled     bool   `json:"enabled"`
}

func (m *Monitor) listTracepoints(w http.ResponseWriter, _ *http.Request) {
	tps := m.registry.Tracepoints()

	rsp := make([]tracepointRsp, 0, len(tps))
	for _, tp := range tps {
		rsp = append(rsp, tracepointRsp{
			ID:          tp.ID(),
			Name:        tp.DisplayName(),
			Description: tp.Description(),
			Flags:       int(tp.Flags()),
			Enabled:     tp.Enabled(),
		})
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) tracepointDetails(w http.ResponseWriter, r *http.Request) {
	idString := mux.Vars(r)["id"]

	id, err := strconv.Atoi(idString)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	tp := m.findTracepointOr404(w, id)
	if tp == nil {
		return
	}

	bytes, err := json.Marshal(tracepointRsp{
		ID:          tp.ID(),
		Name:        tp.DisplayName(),
		Description: tp.Description(),
		Flags:       int(tp.Flags()),
		Enabled:     tp.Enabled(),
	})
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) findTracepointOr404(
	w http.ResponseWriter,
	id int,
) *tracepoint.Tracepoint {
	tp := m.registry.ByID(id)

	if tp == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Tracepoint not found"))
		dieOnErr(err)
	}

	return tp
}

type searchRsp struct {
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Positions []int  `json:"positions"`
}

func (m *Monitor) search(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("q")

	ctx := r.Context()
	cancelled := func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}

	matches := m.searcher().Search(pattern, cancelled)
	if matches == nil {
		// The client went away mid-search.
		return
	}

	rsp := make([]searchRsp, 0, len(matches))
	for _, match := range matches {
		rsp = append(rsp, searchRsp{
			Name:      match.Candidate,
			Score:     match.Score,
			Positions: match.Positions,
		})
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

// searcher returns the cached searcher over the registry's display names,
// rebuilt whenever tracepoints were registered since the last build.
func (m *Monitor) searcher() *fuzzysearch.CachedSearcher {
	m.searcherLock.Lock()
	defer m.searcherLock.Unlock()

	if m.cachedSearcher == nil ||
		m.cachedSearcher.NumCandidates() != m.registry.NumTracepoints() {
		m.cachedSearcher =
			fuzzysearch.NewCachedSearcher(m.registry.DisplayNames())
	}

	return m.cachedSearcher
}

func (m *Monitor) resetStats(w http.ResponseWriter, _ *http.Request) {
	m.collector.ResetStats()

	_, err := w.Write(nil)
	dieOnErr(err)
}

type progressRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	// Workload goroutines keep incrementing bars while this handler runs.
	rsp := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		b.Lock()
		rsp = append(rsp, progressRsp{
			ID:        b.ID,
			Name:      b.Name,
			StartTime: b.StartTime,
			Total:     b.Total,
			Finished:  b.Finished,
		})
		b.Unlock()
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectorState(w http.ResponseWriter, _ *http.Request) {
	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.collector)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

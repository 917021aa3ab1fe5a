package recording

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A CSVSink writes entries to a CSV file. Times are integer nanoseconds.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink creates a sink writing to name + ".csv", truncating any
// previous file of that name. An empty name picks a unique one. The sink
// flushes at process exit.
func NewCSVSink(name string) *CSVSink {
	if name == "" {
		name = "calltrace_stats_" + xid.New().String()
	}

	file, err := os.OpenFile(name+".csv",
		os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		panic(err)
	}

	s := &CSVSink{
		file:   file,
		writer: csv.NewWriter(file),
	}

	header := []string{"CycleStart", "CycleEnd", "Tracepoint",
		"CallCount", "WallTime", "MaxWallTime"}
	if err := s.writer.Write(header); err != nil {
		panic(err)
	}

	atexit.Register(s.Flush)

	return s
}

// AddEntry writes one row.
func (s *CSVSink) AddEntry(entry Entry) {
	err := s.writer.Write([]string{
		strconv.FormatInt(int64(entry.CycleStart), 10),
		strconv.FormatInt(int64(entry.CycleEnd), 10),
		entry.Tracepoint,
		strconv.FormatInt(entry.CallCount, 10),
		strconv.FormatInt(int64(entry.WallTime), 10),
		strconv.FormatInt(int64(entry.MaxWallTime), 10),
	})
	if err != nil {
		panic(err)
	}
}

// Flush pushes buffered rows to the file.
func (s *CSVSink) Flush() {
	s.writer.Flush()

	if err := s.writer.Error(); err != nil {
		panic(err)
	}
}

package recording

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A SQLiteSink batches entries and writes them to a SQLite database.
type SQLiteSink struct {
	*sql.DB
	statement *sql.Stmt

	batchSize int
	entries   []Entry
}

// NewSQLiteSink creates a sink writing to name + ".sqlite3". An empty
// name picks a unique one. The sink refuses to overwrite an existing
// file, and flushes and closes the database at process exit.
func NewSQLiteSink(name string) *SQLiteSink {
	s := &SQLiteSink{
		batchSize: 10000,
	}

	s.createDatabase(name)
	s.prepareStatement()

	atexit.Register(func() {
		s.Flush()

		if err := s.Close(); err != nil {
			panic(err)
		}
	})

	return s
}

// NewSQLiteSinkWithDB creates a sink over an already-open database.
func NewSQLiteSinkWithDB(db *sql.DB) *SQLiteSink {
	s := &SQLiteSink{
		DB:        db,
		batchSize: 10000,
	}

	s.createTable()
	s.prepareStatement()

	return s
}

// AddEntry buffers one entry, flushing when the batch is full.
func (s *SQLiteSink) AddEntry(entry Entry) {
	s.entries = append(s.entries, entry)

	if len(s.entries) >= s.batchSize {
		s.Flush()
	}
}

// Flush writes all buffered entries in one transaction.
func (s *SQLiteSink) Flush() {
	if len(s.entries) == 0 {
		return
	}

	tx, err := s.Begin()
	if err != nil {
		panic(err)
	}

	defer func() {
		innerErr := tx.Commit()
		if innerErr != nil {
			panic(innerErr)
		}
	}()

	for _, entry := range s.entries {
		_, err = tx.Stmt(s.statement).Exec(
			int64(entry.CycleStart),
			int64(entry.CycleEnd),
			entry.Tracepoint,
			entry.CallCount,
			int64(entry.WallTime),
			int64(entry.MaxWallTime),
		)
		if err != nil {
			panic(err)
		}
	}

	s.entries = s.entries[:0]
}

func (s *SQLiteSink) createDatabase(name string) {
	if name == "" {
		name = "calltrace_stats_" + xid.New().String()
	}

	filename := name + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Recording call statistics to %s\n", filename)

	s.DB, err = sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	s.createTable()
}

func (s *SQLiteSink) createTable() {
	sqlStmt := `
	create table if not exists stats (
		id integer not null primary key,
		cycle_start integer,
		cycle_end integer,
		tracepoint text,
		call_count integer,
		wall_time integer,
		max_wall_time integer
	);
	`

	if _, err := s.Exec(sqlStmt); err != nil {
		panic(err)
	}
}

func (s *SQLiteSink) prepareStatement() {
	sqlStmt := `
	insert into stats(
		cycle_start, cycle_end, tracepoint,
		call_count, wall_time, max_wall_time)
	values(?, ?, ?, ?, ?, ?)
	`

	var err error

	s.statement, err = s.Prepare(sqlStmt)
	if err != nil {
		panic(err)
	}
}

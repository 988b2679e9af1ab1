package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ergo.services/dvm/codec"
	"ergo.services/dvm/gen"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS outputs (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	time INTEGER NOT NULL,
	dprocess TEXT NOT NULL,
	kind TEXT NOT NULL,
	data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS outputs_dprocess ON outputs (dprocess, seq);`

// Record is a stored output.
type Record struct {
	Seq        int64
	Time       time.Time
	DProcessID gen.DProcessID
	Kind       string
	Output     gen.VMOutput
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	DProcessID gen.DProcessID
	Kind       string
	AfterSeq   int64
	Limit      int
}

// SQLite keeps every output in a SQLite database, one row per output, encoded
// with the CBOR codec.
type SQLite struct {
	mutex sync.Mutex
	db    *sql.DB
	path  string
}

// OpenSQLite opens (and creates if needed) the database at path. Use
// ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Path
func (s *SQLite) Path() string {
	return s.path
}

// Write stores outputs in one transaction, keeping their order.
func (s *SQLite) Write(outputs gen.VMOutputs) error {
	if len(outputs) == 0 {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO outputs (time, dprocess, kind, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, o := range outputs {
		data, err := codec.MarshalOutput(o)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encoding %s: %w", o, err)
		}
		if _, err := stmt.Exec(now, outputID(o).String(), Kind(o), data); err != nil {
			tx.Rollback()
			return fmt.Errorf("saving output: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing outputs: %w", err)
	}
	return nil
}

// Query returns the records matching the filter, oldest first.
func (s *SQLite) Query(ctx context.Context, filter Filter) ([]Record, error) {
	var where []string
	var args []any
	if filter.DProcessID.IsZero() == false {
		where = append(where, "dprocess = ?")
		args = append(args, filter.DProcessID.String())
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, filter.AfterSeq)
	}

	query := "SELECT seq, time, dprocess, kind, data FROM outputs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying outputs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var nanos int64
		var id string
		var data []byte
		if err := rows.Scan(&r.Seq, &nanos, &id, &r.Kind, &data); err != nil {
			return nil, fmt.Errorf("scanning output: %w", err)
		}
		if r.DProcessID, err = gen.ParseDProcessID(id); err != nil {
			return nil, err
		}
		if r.Output, err = codec.UnmarshalOutput(data); err != nil {
			return nil, err
		}
		r.Time = time.Unix(0, nanos)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Exit returns the stored exit status of the d-process, or ErrUnknown if it
// has not exited.
func (s *SQLite) Exit(ctx context.Context, id gen.DProcessID) (gen.ExitStatus, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM outputs WHERE dprocess = ? AND kind = ? ORDER BY seq DESC LIMIT 1",
		id.String(), "exit",
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gen.ErrUnknown
		}
		return nil, fmt.Errorf("querying exit: %w", err)
	}
	o, err := codec.UnmarshalOutput(data)
	if err != nil {
		return nil, err
	}
	exited, ok := o.(gen.VMOutputProcessExited)
	if ok == false {
		return nil, fmt.Errorf("%w: stored exit is %s", gen.ErrMalformed, o)
	}
	return exited.ExitStatus, nil
}

// Close
func (s *SQLite) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.db.Close()
}

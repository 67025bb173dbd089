package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/livinlefevreloca/dinesync/internal/batch"
	"github.com/livinlefevreloca/dinesync/internal/plan"
)

// Fetcher opens a connection per task and streams the task's rows
type Fetcher struct {
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewFetcher creates a fetcher for the configured source database
func NewFetcher(config Config, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock returns a copy of the fetcher that resolves time windows
// against now instead of the wall clock
func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	c := *f
	c.now = now
	return &c
}

// Conn is a connection scoped to a single task
type Conn struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

// Connect opens a new connection to the source database
func (f *Fetcher) Connect(ctx context.Context) (*Conn, error) {
	f.logger.Debug("connecting to database", "driver", f.config.Driver, "dsn", f.config.DSN)
	db, err := OpenWithConfig(ctx, f.config)
	if err != nil {
		return nil, err
	}
	return &Conn{db: db, logger: f.logger, now: f.now}, nil
}

// Fetch connects and starts streaming the task's rows. Closing the
// returned cursor also closes the connection.
func (f *Fetcher) Fetch(ctx context.Context, task *plan.Task) (*Cursor, error) {
	conn, err := f.Connect(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := conn.Fetch(ctx, task)
	if err != nil {
		conn.Close()
		return nil, err
	}
	cursor.conn = conn
	return cursor, nil
}

// Fetch runs the task's query. Rows are read lazily as the cursor advances.
func (c *Conn) Fetch(ctx context.Context, task *plan.Task) (*Cursor, error) {
	query, args := task.Query(c.now())
	if c.db.Driver() == DriverSQLite {
		args = sqliteArgs(args)
	}
	c.logger.Debug("executing query",
		"task", task.Name,
		"driver", c.db.Driver(),
		"query", query,
		"window", task.Window.String())

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", task.Table, err)
	}

	return &Cursor{
		task:   task,
		rows:   rows,
		names:  task.ColumnNames(),
		logger: c.logger,
	}, nil
}

// sqliteLayout matches how replicas store timestamps as text. Comparing
// against a zone-suffixed cutoff would drop rows exactly at the boundary.
const sqliteLayout = "2006-01-02 15:04:05.999999999"

// sqliteArgs binds times as naive text since sqlite compares TEXT columns
// lexically
func sqliteArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if ts, ok := a.(time.Time); ok {
			out[i] = ts.Format(sqliteLayout)
			continue
		}
		out[i] = a
	}
	return out
}

// Close releases the connection
func (c *Conn) Close() error {
	return c.db.Close()
}

// Cursor streams normalized records from a query. It satisfies
// batch.Source.
type Cursor struct {
	task   *plan.Task
	rows   *sql.Rows
	names  []string
	logger *slog.Logger
	conn   *Conn

	current batch.Record
	read    int
	skipped int
	err     error
	closed  bool
}

// Next advances to the next well-formed row. Rows that cannot be
// normalized are logged and skipped.
func (c *Cursor) Next() bool {
	if c.err != nil || c.closed {
		return false
	}

	for c.rows.Next() {
		values := make([]any, len(c.names))
		ptrs := make([]any, len(c.names))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := c.rows.Scan(ptrs...); err != nil {
			c.err = fmt.Errorf("scan %s: %w", c.task.Table, err)
			return false
		}

		record, err := c.task.Normalize(c.names, values)
		if err != nil {
			c.skipped++
			c.logger.Error("skipping row",
				"task", c.task.Name,
				"table", c.task.Table,
				"error", err)
			continue
		}

		c.current = record
		c.read++
		return true
	}

	if err := c.rows.Err(); err != nil {
		c.err = fmt.Errorf("read %s: %w", c.task.Table, err)
	}
	return false
}

// Record returns the record produced by the last successful Next
func (c *Cursor) Record() batch.Record {
	return c.current
}

// Err returns the error that stopped iteration, if any
func (c *Cursor) Err() error {
	return c.err
}

// Read returns how many records have been produced so far
func (c *Cursor) Read() int {
	return c.read
}

// Skipped returns how many rows were dropped during normalization
func (c *Cursor) Skipped() int {
	return c.skipped
}

// Close releases the rows and, for cursors returned by Fetcher.Fetch,
// the connection. It is safe to call more than once.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.rows.Close()
	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

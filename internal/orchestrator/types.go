package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/livinlefevreloca/dinesync/internal/batch"
	"github.com/livinlefevreloca/dinesync/internal/db"
	"github.com/livinlefevreloca/dinesync/internal/plan"
	"github.com/livinlefevreloca/dinesync/internal/uploader"
)

// TaskStatus is the final outcome of a task
type TaskStatus int

const (
	TaskSuccess TaskStatus = iota
	TaskFailure
)

// String returns a human-readable representation of the task status
func (s TaskStatus) String() string {
	switch s {
	case TaskSuccess:
		return "SUCCESS"
	case TaskFailure:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ErrorKind classifies why a task failed
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindConnection ErrorKind = "connection"
	KindAPI        ErrorKind = "api"
	KindCancelled  ErrorKind = "cancelled"
	KindUnexpected ErrorKind = "unexpected"
)

// TaskResult records the outcome of one task
type TaskResult struct {
	Task             plan.Task
	Status           TaskStatus
	RecordsProcessed int
	BatchesSent      int
	Skipped          int
	Stage            string // state the task failed in
	Kind             ErrorKind
	Error            string
	Duration         time.Duration
}

// Succeeded reports whether the task delivered everything
func (r TaskResult) Succeeded() bool {
	return r.Status == TaskSuccess
}

// Summary aggregates the results of one run
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []TaskResult
}

// SuccessCount returns how many tasks succeeded
func (s Summary) SuccessCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Succeeded() {
			n++
		}
	}
	return n
}

// Total returns the number of tasks attempted
func (s Summary) Total() int {
	return len(s.Results)
}

// AllSucceeded reports whether every task succeeded
func (s Summary) AllSucceeded() bool {
	return s.SuccessCount() == s.Total()
}

// Line returns the one-line aggregate shown at the end of a run
func (s Summary) Line() string {
	return fmt.Sprintf("%d/%d tables synced successfully", s.SuccessCount(), s.Total())
}

// WriteTable renders the per-task result table
func (s Summary) WriteTable(w io.Writer) error {
	rule := strings.Repeat("=", 70)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nSYNC RESULTS SUMMARY\n%s\n", rule, rule)
	for _, r := range s.Results {
		fmt.Fprintf(&b, "%-35s - %-7s %8d records\n", r.Task.DisplayName(), r.Status, r.RecordsProcessed)
	}
	fmt.Fprintf(&b, "%s\nSummary: %s\n", rule, s.Line())
	if s.AllSucceeded() {
		b.WriteString("All synchronizations completed successfully!\n")
	} else {
		b.WriteString("One or more synchronizations failed. Check the log file for details.\n")
	}
	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// UnexpectedError wraps a fault outside the connection/API taxonomy,
// including a recovered panic
type UnexpectedError struct {
	Task  string
	Stage string
	Cause any
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error in %s during %s: %v", e.Task, e.Stage, e.Cause)
}

func (e *UnexpectedError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// Cursor streams records for one task
type Cursor interface {
	batch.Source
	Close() error
}

// Conn is a source connection scoped to one task
type Conn interface {
	Fetch(ctx context.Context, task *plan.Task) (Cursor, error)
	Close() error
}

// Source opens connections to the source database
type Source interface {
	Connect(ctx context.Context) (Conn, error)
}

// Uploader delivers batches to the API
type Uploader interface {
	Upload(ctx context.Context, req uploader.Request) (uploader.Result, error)
}

// skipCounter is implemented by cursors that drop malformed rows
type skipCounter interface {
	Skipped() int
}

// NewDBSource adapts a db.Fetcher to Source
func NewDBSource(f *db.Fetcher) Source {
	return dbSource{fetcher: f}
}

type dbSource struct {
	fetcher *db.Fetcher
}

func (s dbSource) Connect(ctx context.Context) (Conn, error) {
	conn, err := s.fetcher.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return dbConn{conn: conn}, nil
}

type dbConn struct {
	conn *db.Conn
}

func (c dbConn) Fetch(ctx context.Context, task *plan.Task) (Cursor, error) {
	cursor, err := c.conn.Fetch(ctx, task)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (c dbConn) Close() error {
	return c.conn.Close()
}

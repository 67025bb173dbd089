// Package plan defines the ordered set of table-to-API sync tasks and
// the queries used to read each table.
package plan

import (
	"fmt"
	"strings"
	"time"
)

// Window restricts a fetch to recent rows. The zero value means all rows.
type Window struct {
	Days int
}

// All returns an unrestricted window
func All() Window {
	return Window{}
}

// LastDays returns a window covering the last n days
func LastDays(n int) Window {
	return Window{Days: n}
}

// IsAll reports whether the window applies no restriction
func (w Window) IsAll() bool {
	return w.Days <= 0
}

// Cutoff returns the oldest timestamp kept by the window relative to now
func (w Window) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -w.Days)
}

func (w Window) String() string {
	if w.IsAll() {
		return "ALL"
	}
	if w.Days == 1 {
		return "last 1 day"
	}
	return fmt.Sprintf("last %d days", w.Days)
}

// Column selects a source column, optionally renaming it in the output
type Column struct {
	Name   string // key in the uploaded record
	Source string // column in the table; defaults to Name
}

func (c Column) source() string {
	if c.Source == "" {
		return c.Name
	}
	return c.Source
}

// Task is one table-to-API synchronization unit. Tasks are built once at
// startup and never mutated during a run.
type Task struct {
	Name            string
	Label           string
	Table           string
	Columns         []Column
	Window          Window
	TimestampColumn string
	Where           string // static predicate ANDed with the window
	OrderBy         string
	Route           string

	// Zero means use the run-wide setting
	BatchSize  int
	Timeout    time.Duration
	BatchDelay time.Duration

	Transforms map[string]Transform
}

// DisplayName returns the label shown in progress output and summaries
func (t *Task) DisplayName() string {
	if t.Label != "" {
		return t.Label
	}
	return t.Name
}

// ColumnNames returns the output keys in select order
func (t *Task) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks that the task can be turned into a query
func (t *Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name must be specified")
	}
	if t.Table == "" {
		return fmt.Errorf("task %s: table must be specified", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("task %s: at least one column must be selected", t.Name)
	}
	if !t.Window.IsAll() && t.TimestampColumn == "" {
		return fmt.Errorf("task %s: windowed fetch requires a timestamp column", t.Name)
	}
	if t.Route == "" {
		return fmt.Errorf("task %s: api route must be specified", t.Name)
	}
	if !strings.HasPrefix(t.Route, "/") {
		return fmt.Errorf("task %s: api route must start with '/': %s", t.Name, t.Route)
	}
	return nil
}

// Query builds the SELECT statement for the task. Identifiers are double
// quoted since columns like time, user and date are reserved words. A
// windowed task binds the cutoff as the only argument.
func (t *Task) Query(now time.Time) (string, []any) {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if c.source() == c.Name {
			cols[i] = quoteIdent(c.Name)
		} else {
			cols[i] = quoteIdent(c.source()) + " AS " + quoteIdent(c.Name)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(t.Table))

	var conds []string
	var args []any
	if !t.Window.IsAll() {
		conds = append(conds, quoteIdent(t.TimestampColumn)+" >= ?")
		args = append(args, t.Window.Cutoff(now))
	}
	if t.Where != "" {
		conds = append(conds, t.Where)
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if t.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(t.OrderBy)
	}

	return b.String(), args
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

package plan

import (
	"fmt"
	"strings"
	"time"
)

// Task names in the default plan
const (
	TaskUsers          = "acc_users"
	TaskItems          = "tb_item_master"
	TaskBills          = "dine_bill"
	TaskBillsMonth     = "dine_bill_month"
	TaskKOTSales       = "dine_kot_sales_detail"
	TaskCancelledBills = "cancelled_bills"
)

var (
	billColumns      = []Column{{Name: "billno"}, {Name: "date"}, {Name: "time"}, {Name: "user"}, {Name: "amount"}}
	itemColumns      = []Column{{Name: "itemcode"}, {Name: "itemname"}, {Name: "category"}, {Name: "rate"}}
	kotColumns       = []Column{{Name: "slno"}, {Name: "billno"}, {Name: "item"}, {Name: "qty"}, {Name: "rate"}}
	cancelledColumns = []Column{{Name: "billno"}, {Name: "date"}, {Name: "creditcard"}, {Name: "colnstatus"}}
)

func billTransforms() map[string]Transform {
	return map[string]Transform{
		"time":   ISOTime,
		"date":   ISOTime,
		"billno": IntString,
		"user":   Trim,
		"amount": Float,
	}
}

// Default returns the sync plan in execution order
func Default() []Task {
	return []Task{
		{
			Name:    TaskUsers,
			Table:   "acc_users",
			Columns: []Column{{Name: "id"}, {Name: "password", Source: "pass"}},
			Window:  All(),
			Route:   "/api/sync/users",
			Transforms: map[string]Transform{
				"id":       TrimOrEmpty,
				"password": TrimOrEmpty,
			},
		},
		{
			Name:    TaskItems,
			Table:   "tb_item_master",
			Columns: itemColumns,
			Window:  All(),
			Route:   "/api/sync/items",
			Timeout: 2 * time.Minute,
		},
		{
			Name:            TaskBills,
			Label:           "dine_bill (7 days)",
			Table:           "dine_bill",
			Columns:         billColumns,
			Window:          LastDays(7),
			TimestampColumn: "time",
			OrderBy:         `"time" DESC`,
			Route:           "/api/sync/bills",
			Transforms:      billTransforms(),
		},
		{
			Name:            TaskBillsMonth,
			Label:           "dine_bill_month (ALL)",
			Table:           "dine_bill",
			Columns:         billColumns,
			Window:          All(),
			TimestampColumn: "time",
			OrderBy:         `"time" DESC`,
			Route:           "/api/sync/bills-month",
			BatchSize:       500,
			Timeout:         5 * time.Minute,
			BatchDelay:      time.Second,
			Transforms:      billTransforms(),
		},
		{
			Name:       TaskKOTSales,
			Table:      "dine_kot_sales_detail",
			Columns:    kotColumns,
			Window:     All(),
			OrderBy:    `"slno" DESC`,
			Route:      "/api/sync/kot-sales",
			BatchSize:  500,
			Timeout:    5 * time.Minute,
			BatchDelay: time.Second,
			Transforms: map[string]Transform{
				"slno":   IntString,
				"billno": IntString,
				"item":   Trim,
				"qty":    Float,
				"rate":   Float,
			},
		},
		{
			Name:    TaskCancelledBills,
			Table:   "dine_bill",
			Columns: cancelledColumns,
			Window:  All(),
			Where:   `"colnstatus" = 'C'`,
			OrderBy: `"billno" DESC`,
			Route:   "/api/sync/cancelled-bills",
			Transforms: map[string]Transform{
				"billno":     IntString,
				"date":       ISOTime,
				"creditcard": Trim,
				"colnstatus": Trim,
			},
		},
	}
}

// Override adjusts a task from the configuration file
type Override struct {
	Enabled    *bool         `toml:"enabled"`
	Route      string        `toml:"route"`
	BatchSize  int           `toml:"batch_size"`
	Timeout    time.Duration `toml:"timeout"`
	BatchDelay time.Duration `toml:"batch_delay"`
	WindowDays *int          `toml:"window_days"`
	Columns    []string      `toml:"columns"`
}

// Apply returns a copy of tasks with overrides applied and disabled tasks
// removed. Overrides naming unknown tasks are an error.
func Apply(tasks []Task, overrides map[string]Override) ([]Task, error) {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.Name] = true
	}
	for name := range overrides {
		if !known[name] {
			return nil, fmt.Errorf("override for unknown task: %s", name)
		}
	}

	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		o, ok := overrides[t.Name]
		if !ok {
			out = append(out, t)
			continue
		}
		if o.Enabled != nil && !*o.Enabled {
			continue
		}
		if o.Route != "" {
			t.Route = o.Route
		}
		if o.BatchSize > 0 {
			t.BatchSize = o.BatchSize
		}
		if o.Timeout > 0 {
			t.Timeout = o.Timeout
		}
		if o.BatchDelay > 0 {
			t.BatchDelay = o.BatchDelay
		}
		if o.WindowDays != nil {
			t.Window = LastDays(*o.WindowDays)
		}
		if len(o.Columns) > 0 {
			t.Columns = overrideColumns(t.Columns, o.Columns)
		}
		out = append(out, t)
	}
	return out, nil
}

// overrideColumns resolves configured column names against the task's
// existing columns so renamed sources survive. An entry of the form
// "src AS name" selects src under a new key.
func overrideColumns(current []Column, names []string) []Column {
	byName := make(map[string]Column, len(current))
	for _, c := range current {
		byName[c.Name] = c
	}

	cols := make([]Column, len(names))
	for i, entry := range names {
		entry = strings.TrimSpace(entry)
		if src, name, ok := splitAlias(entry); ok {
			cols[i] = Column{Name: name, Source: src}
			continue
		}
		if c, ok := byName[entry]; ok {
			cols[i] = c
			continue
		}
		cols[i] = Column{Name: entry}
	}
	return cols
}

func splitAlias(entry string) (src, name string, ok bool) {
	fields := strings.Fields(entry)
	if len(fields) != 3 || !strings.EqualFold(fields[1], "as") {
		return "", "", false
	}
	return fields[0], fields[2], true
}

// Validate checks every task and the uniqueness of task names
func Validate(tasks []Task) error {
	seen := make(map[string]bool, len(tasks))
	for i := range tasks {
		if err := tasks[i].Validate(); err != nil {
			return err
		}
		if seen[tasks[i].Name] {
			return fmt.Errorf("duplicate task name: %s", tasks[i].Name)
		}
		seen[tasks[i].Name] = true
	}
	return nil
}

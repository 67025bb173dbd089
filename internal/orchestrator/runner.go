package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/livinlefevreloca/dinesync/internal/plan"
	"github.com/livinlefevreloca/dinesync/internal/progress"
)

// Config holds run-wide sync settings. Tasks may override them.
type Config struct {
	BatchSize  int           `toml:"batch_size"`
	BatchDelay time.Duration `toml:"batch_delay"`
}

// DefaultConfig returns the sync defaults
func DefaultConfig() Config {
	return Config{
		BatchSize:  1000,
		BatchDelay: 500 * time.Millisecond,
	}
}

// Validate checks the sync settings
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("sync batch_size must be at least 1, got %d", c.BatchSize)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("sync batch_delay must not be negative")
	}
	return nil
}

// Runner executes a sync plan sequentially
type Runner struct {
	config   Config
	source   Source
	uploader Uploader
	logger   *slog.Logger

	newRunID func() string

	// Optional state recorders keyed by task name, for testing
	recorders map[string]*StateRecorder
}

// NewRunner creates a runner
func NewRunner(config Config, source Source, up Uploader, logger *slog.Logger) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		config:   config,
		source:   source,
		uploader: up,
		logger:   logger,
		newRunID: func() string { return uuid.NewString() },
	}, nil
}

// Run executes every task in order. A failed task never stops the run;
// its failure is recorded and the next task starts.
func (r *Runner) Run(ctx context.Context, tasks []plan.Task) Summary {
	summary := Summary{
		RunID:     r.newRunID(),
		StartedAt: time.Now(),
		Results:   make([]TaskResult, 0, len(tasks)),
	}

	r.logger.Info(fmt.Sprintf("Syncing %d tables", len(tasks)), "run_id", summary.RunID)

	for i := range tasks {
		result := r.runTask(ctx, summary.RunID, &tasks[i], i+1, len(tasks))
		summary.Results = append(summary.Results, result)
	}

	summary.FinishedAt = time.Now()
	r.report(summary)
	return summary
}

func (r *Runner) runTask(ctx context.Context, runID string, task *plan.Task, step, steps int) TaskResult {
	batchSize := r.config.BatchSize
	if task.BatchSize > 0 {
		batchSize = task.BatchSize
	}
	batchDelay := r.config.BatchDelay
	if task.BatchDelay > 0 {
		batchDelay = task.BatchDelay
	}

	t := &TaskRun{
		runID:      runID,
		task:       task,
		step:       step,
		steps:      steps,
		state:      &PendingState{},
		source:     r.source,
		uploader:   r.uploader,
		logger:     r.logger,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		timing:     PhaseTiming{StartedAt: time.Now()},
	}
	if rec, ok := r.recorders[task.Name]; ok {
		t.recorder = rec
		rec.Record(t.state)
	}

	t.run(ctx)
	result := t.result()

	if result.Succeeded() {
		progress.Success(r.logger, fmt.Sprintf("%s sync completed", task.DisplayName()),
			"records", result.RecordsProcessed,
			"batches", result.BatchesSent,
			"duration", result.Duration.Round(time.Millisecond))
	} else {
		r.logger.Error(fmt.Sprintf("%s sync failed", task.DisplayName()),
			"task", task.Name,
			"table", task.Table,
			"stage", result.Stage,
			"kind", string(result.Kind),
			"records", result.RecordsProcessed,
			"error", result.Error)
	}
	return result
}

func (r *Runner) report(s Summary) {
	for _, res := range s.Results {
		r.logger.Info(fmt.Sprintf("%-35s - %s", res.Task.DisplayName(), res.Status))
	}

	if s.AllSucceeded() {
		progress.Success(r.logger, "Summary: "+s.Line(), "run_id", s.RunID)
	} else {
		r.logger.Error("Summary: "+s.Line(), "run_id", s.RunID)
	}
}

// Package orchestrator runs the sync plan task by task, driving each task
// through connect, fetch and upload, and aggregates the outcomes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/livinlefevreloca/dinesync/internal/batch"
	"github.com/livinlefevreloca/dinesync/internal/db"
	"github.com/livinlefevreloca/dinesync/internal/plan"
	"github.com/livinlefevreloca/dinesync/internal/progress"
	"github.com/livinlefevreloca/dinesync/internal/uploader"
)

// TaskRun drives a single task through its states
type TaskRun struct {
	// Core identification
	runID string
	task  *plan.Task
	step  int
	steps int

	// State management
	state State

	// Dependencies
	source   Source
	uploader Uploader
	logger   *slog.Logger

	// Settings resolved against run-wide defaults
	batchSize  int
	batchDelay time.Duration

	// Resources held between states
	conn   Conn
	cursor Cursor

	// Phase timing
	timing PhaseTiming

	// Execution results
	records     int
	batchesSent int
	skipped     int
	failedStage string
	err         error

	// Optional state recorder for testing
	recorder *StateRecorder
}

// GetStateName returns the current state name (for testing)
func (t *TaskRun) GetStateName() string {
	return t.state.Name()
}

// transitionTo performs a state transition and logs it
func (t *TaskRun) transitionTo(newState State) {
	oldStateName := t.state.Name()
	t.state = newState

	// Record state for testing if recorder is present
	if t.recorder != nil {
		t.recorder.Record(newState)
	}

	t.logger.Debug("state transition",
		"from", oldStateName,
		"to", newState.Name(),
		"task", t.task.Name)
}

// fail records the cause and moves to FailedState
func (t *TaskRun) fail(to *FailedState, err error) {
	t.failedStage = t.state.Name()
	t.err = err
	t.transitionTo(to)
}

// run is the task loop. It always releases the cursor and connection.
func (t *TaskRun) run(ctx context.Context) {
	defer t.release()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("task panic recovered",
				"task", t.task.Name,
				"stage", t.state.Name(),
				"panic", r,
				"stack", string(debug.Stack()))
			t.failedStage = t.state.Name()
			t.err = &UnexpectedError{Task: t.task.Name, Stage: t.state.Name(), Cause: r}
			t.timing.CompletedAt = time.Now()
			t.transitionTo(&FailedState{})
		}
	}()

	for {
		switch t.state.(type) {
		case *PendingState:
			t.runPending(ctx)
		case *ConnectingState:
			t.runConnecting(ctx)
		case *FetchingState:
			t.runFetching(ctx)
		case *UploadingState:
			t.runUploading(ctx)
		case *SucceededState, *FailedState:
			t.timing.CompletedAt = time.Now()
			return
		default:
			t.err = &UnexpectedError{Task: t.task.Name, Stage: t.state.Name(), Cause: fmt.Sprintf("unknown state %T", t.state)}
			t.failedStage = t.state.Name()
			t.transitionTo(&FailedState{})
		}
	}
}

// runPending checks that the run has not been cancelled
func (t *TaskRun) runPending(ctx context.Context) {
	state := t.state.(*PendingState)

	if err := ctx.Err(); err != nil {
		t.fail(state.ToFailed(), err)
		return
	}

	progress.Progress(t.logger, fmt.Sprintf("Step %d/%d: Syncing %s", t.step, t.steps, t.task.DisplayName()),
		"table", t.task.Table,
		"window", t.task.Window.String())
	t.transitionTo(state.ToConnecting())
}

// runConnecting opens the task's database connection
func (t *TaskRun) runConnecting(ctx context.Context) {
	state := t.state.(*ConnectingState)

	conn, err := t.source.Connect(ctx)
	if err != nil {
		t.fail(state.ToFailed(), err)
		return
	}
	t.conn = conn
	t.timing.ConnectedAt = time.Now()

	progress.Success(t.logger, "Database connection successful", "task", t.task.Name)
	t.transitionTo(state.ToFetching())
}

// runFetching executes the task's query
func (t *TaskRun) runFetching(ctx context.Context) {
	state := t.state.(*FetchingState)

	cursor, err := t.conn.Fetch(ctx, t.task)
	if err != nil {
		t.fail(state.ToFailed(), err)
		return
	}
	t.cursor = cursor
	t.timing.FetchedAt = time.Now()

	t.transitionTo(state.ToUploading())
}

// runUploading pulls one batch at a time from the cursor and delivers it
// before reading the next, so batches arrive in fetch order
func (t *TaskRun) runUploading(ctx context.Context) {
	state := t.state.(*UploadingState)

	batcher, err := batch.New(t.cursor, t.batchSize)
	if err != nil {
		t.fail(state.ToFailed(), err)
		return
	}
	pacer := uploader.NewPacer(t.batchDelay)

	for batcher.Next() {
		b := batcher.Batch()

		if err := pacer.Wait(ctx); err != nil {
			t.fail(state.ToFailed(), err)
			return
		}

		progress.Progress(t.logger, fmt.Sprintf("Sending batch %d (%d records)", b.Number, b.Len()),
			"task", t.task.Name,
			"route", t.task.Route)

		result, err := t.uploader.Upload(ctx, uploader.Request{
			RunID:   t.runID,
			Task:    t.task.Name,
			Route:   t.task.Route,
			Timeout: t.task.Timeout,
			Batch:   b,
		})
		if err != nil {
			t.fail(state.ToFailed(), fmt.Errorf("batch %d: %w", b.Number, err))
			return
		}
		pacer.Done()

		t.records += b.Len()
		t.batchesSent++
		t.logger.Debug("batch delivered",
			"task", t.task.Name,
			"batch", b.Number,
			"status", result.StatusCode,
			"attempts", result.Attempts)
	}

	if err := batcher.Err(); err != nil {
		// The cursor failed mid-stream; report it against the fetch
		t.failedStage = (&FetchingState{}).Name()
		t.err = err
		t.transitionTo(state.ToFailed())
		return
	}

	if t.records == 0 {
		t.logger.Info(fmt.Sprintf("No %s records to sync", t.task.DisplayName()), "task", t.task.Name)
	}
	t.transitionTo(state.ToSucceeded())
}

func (t *TaskRun) release() {
	if t.cursor != nil {
		if sc, ok := t.cursor.(skipCounter); ok {
			t.skipped = sc.Skipped()
		}
		if err := t.cursor.Close(); err != nil {
			t.logger.Debug("closing cursor", "task", t.task.Name, "error", err)
		}
		t.cursor = nil
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			t.logger.Debug("closing connection", "task", t.task.Name, "error", err)
		}
		t.conn = nil
	}
}

// result converts the finished run into a TaskResult
func (t *TaskRun) result() TaskResult {
	r := TaskResult{
		Task:             *t.task,
		RecordsProcessed: t.records,
		BatchesSent:      t.batchesSent,
		Skipped:          t.skipped,
		Duration:         t.timing.CompletedAt.Sub(t.timing.StartedAt),
	}

	if _, ok := t.state.(*SucceededState); ok {
		r.Status = TaskSuccess
		return r
	}

	r.Status = TaskFailure
	r.Stage = t.failedStage
	r.Kind = classify(t.err)
	if t.err != nil {
		r.Error = t.err.Error()
	}
	return r
}

func classify(err error) ErrorKind {
	var connErr *db.ConnectionError
	var apiErr *uploader.APIError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &connErr):
		return KindConnection
	case errors.As(err, &apiErr):
		return KindAPI
	default:
		return KindUnexpected
	}
}

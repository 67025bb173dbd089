package orchestrator

import "time"

// State is one step of a task's lifecycle. Each concrete state exposes
// only the transitions that are legal from it.
type State interface {
	Name() string
}

// StateRecorder collects the names of the states a task passes through,
// in order. Runner attaches one per task name when tests ask for it.
type StateRecorder struct {
	path []string
}

func NewStateRecorder() *StateRecorder {
	return &StateRecorder{}
}

// Record appends a visited state
func (r *StateRecorder) Record(state State) {
	r.path = append(r.path, state.Name())
}

// Path returns the visited state names, e.g. pending, connecting, fetching,
// uploading, succeeded
func (r *StateRecorder) Path() []string {
	return r.path
}

// PhaseTiming marks when a task reached each phase. Zero values mean the
// phase was never reached.
type PhaseTiming struct {
	StartedAt   time.Time
	ConnectedAt time.Time
	FetchedAt   time.Time
	CompletedAt time.Time
}

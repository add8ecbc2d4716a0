// Package state records build-run history in a local SQLite database.
package state

import "time"

// RunStatus is the lifecycle state of a recorded build run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunSuccess   RunStatus = "success"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run is one top-level build invocation.
type Run struct {
	ID         string
	RootConfig string
	Status     RunStatus
	Error      string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Step is one catalog built (or planned) within a run.
type Step struct {
	ID        string
	RunID     string
	ConfigKey string
	Artifact  string
	Status    RunStatus
	Error     string
}

// Store persists build runs. Implementations must be safe for use from a
// single build's control flow; independent builds use independent stores
// or rely on SQLite's own locking.
type Store interface {
	Open(path string) error
	Close() error

	StartRun(rootConfig string, dryRun bool) (*Run, error)
	FinishRun(id string, status RunStatus, msg string) error
	RecordStep(runID string, step Step) error

	ListRuns(limit int) ([]Run, error)
	ListSteps(runID string) ([]Step, error)
}

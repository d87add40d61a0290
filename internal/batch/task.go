// Package batch drives the multi-slide orchestration: one pipeline per
// slide, per-slide fault isolation, and end-of-batch cleanup.
package batch

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of one slide task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusValidating Status = "VALIDATING"
	StatusExtracting Status = "EXTRACTING"
	StatusPackaging  Status = "PACKAGING"
	StatusDone       Status = "DONE"
	StatusFailed     Status = "FAILED"
	StatusSkipped    Status = "SKIPPED"
)

// Terminal reports whether the status is final. Terminal tasks are never
// retried.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Task is one unit of per-slide work. It is created at batch start and
// mutated only by the worker executing it.
type Task struct {
	SourcePath  string
	LogicalName string
	Status      Status
	Err         error
	TileCount   int
	Duration    time.Duration
}

// NewTask creates a pending task for one (source path, logical name) pair.
func NewTask(sourcePath, logicalName string) *Task {
	return &Task{
		SourcePath:  sourcePath,
		LogicalName: logicalName,
		Status:      StatusPending,
	}
}

// advance performs a validated status transition. An invalid transition is
// a programming error in the orchestrator, surfaced loudly instead of
// silently corrupting the task lifecycle.
func (t *Task) advance(to Status) error {
	if !allowedTransition(t.Status, to) {
		return fmt.Errorf("invalid task transition for %q: %s -> %s", t.LogicalName, t.Status, to)
	}
	t.Status = to
	return nil
}

// allowedTransition encodes the task state machine:
//
//	Pending -> Validating | Skipped
//	Validating -> Extracting
//	Extracting -> Packaging
//	Packaging -> Done | Skipped
//	any non-terminal -> Failed
func allowedTransition(from, to Status) bool {
	if to == StatusFailed {
		return !from.Terminal()
	}
	switch from {
	case StatusPending:
		return to == StatusValidating || to == StatusSkipped
	case StatusValidating:
		return to == StatusExtracting
	case StatusExtracting:
		return to == StatusPackaging
	case StatusPackaging:
		return to == StatusDone || to == StatusSkipped
	default:
		return false
	}
}

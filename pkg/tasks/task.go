// Package tasks defines the core data structures for task representation in the TaskIndex system.
// Tasks are units of work that can be indexed by priority, assigned to workers,
// and tracked through their lifecycle.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a task.
// The index never changes a task's status; transitions are driven by the
// dispatcher (or whatever collaborator executes the task).
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// String returns the status as a plain string.
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is one of the defined lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Task represents a unit of work stored in the priority index.
//
// The Priority field is the sole ordering key: the index is a plain
// ascending-key structure, and "lower value = higher precedence" is a
// convention applied by callers (the dispatcher drains from Minimum).
// All other fields are descriptive metadata carried along with the key.
type Task struct {
	// ID is a unique identifier for the task (UUID).
	ID string `json:"id"`

	// Priority is the integer ordering key used by the index.
	// It may be any signed integer; the index does not interpret it.
	Priority int `json:"priority"`

	// Description is a human-readable summary of the work.
	Description string `json:"description"`

	// AssignedTo optionally names the worker or person the task is
	// assigned to. Empty means unassigned.
	AssignedTo string `json:"assigned_to,omitempty"`

	// CreatedAt is stamped once at construction and never changes.
	CreatedAt time.Time `json:"created_at"`

	// Status tracks the task's lifecycle. Mutable by collaborators
	// (dispatcher, retry pipeline), never by the index.
	Status Status `json:"status"`

	// RetryCount tracks how many times the dispatcher has retried this
	// task after a failure.
	RetryCount int `json:"retry_count"`
}

// New constructs a pending task with a fresh UUID and a creation timestamp
// of now. The priority and description are taken as given.
func New(priority int, description string) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Priority:    priority,
		Description: description,
		CreatedAt:   time.Now(),
		Status:      StatusPending,
	}
}

// Assign returns the task with AssignedTo set. Provided for fluent
// construction; it mutates and returns the receiver.
func (t *Task) Assign(who string) *Task {
	t.AssignedTo = who
	return t
}

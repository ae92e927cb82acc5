// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents the current state of a background task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task is waiting for a worker slot
	TaskStatusQueued TaskStatus = "Queued"

	// TaskStatusRunning indicates the task is currently executing
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusComplete indicates the task finished successfully
	TaskStatusComplete TaskStatus = "Complete"

	// TaskStatusFailed indicates the task encountered an error
	TaskStatusFailed TaskStatus = "Failed"

	// TaskStatusCanceled indicates the task was canceled before finishing
	TaskStatusCanceled TaskStatus = "Canceled"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transitions are allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed || s == TaskStatusCanceled
}

// =============================================================================
// TASK STRUCTURE
// =============================================================================

// Func is the body of a task. It must return promptly once ctx is done.
type Func func(ctx context.Context, task *Task) error

// Task is one unit of background work, typically an outbound file transfer.
type Task struct {
	// ID is a unique identifier for this task
	ID string

	// Description is a human-readable description of what this task does
	Description string

	// Path is the local file the task operates on
	Path string

	// Status is the current state of the task
	Status TaskStatus

	// StartTime is when the task started running
	StartTime time.Time

	// EndTime is when the task reached a terminal state
	EndTime time.Time

	// Err is the failure cause, if any
	Err error

	// Progress is a percentage (0-100)
	Progress int

	run    Func
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// NewTask creates a queued task that runs fn.
func NewTask(description, path string, fn Func) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Description: description,
		Path:        path,
		Status:      TaskStatusQueued,
		run:         fn,
	}
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

// SetStatus updates the task status (thread-safe).
// Valid transitions: Queued -> Running -> Complete/Failed/Canceled,
// and Queued -> Canceled.
func (t *Task) SetStatus(status TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(status)
}

func (t *Task) transitionLocked(to TaskStatus) error {
	if !isValidTransition(t.Status, to) {
		return fmt.Errorf("invalid status transition from %s to %s", t.Status, to)
	}
	if t.Status == to {
		return nil
	}

	t.Status = to
	switch {
	case to == TaskStatusRunning:
		t.StartTime = time.Now()
	case to.Terminal():
		t.EndTime = time.Now()
	}
	return nil
}

func isValidTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}

	switch from {
	case TaskStatusQueued:
		return to == TaskStatusRunning || to == TaskStatusCanceled
	case TaskStatusRunning:
		return to.Terminal()
	default:
		// Terminal states
		return false
	}
}

// markStarted moves a queued task to running. It fails if the task was
// canceled while waiting.
func (t *Task) markStarted(cancel context.CancelFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(TaskStatusRunning); err != nil {
		return err
	}
	t.cancel = cancel
	return nil
}

// finish records the terminal status. A task already terminal keeps its
// first outcome.
func (t *Task) finish(status TaskStatus, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.transitionLocked(status) != nil {
		return false
	}
	t.Err = err
	if status == TaskStatusComplete {
		t.Progress = 100
	}
	return true
}

// Cancel cancels a queued or running task.
// Returns true if the task was canceled, false if it had already finished.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status.Terminal() {
		return false
	}
	if t.cancel != nil {
		t.cancel()
	}
	return t.transitionLocked(TaskStatusCanceled) == nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// GetStatus returns the current task status (thread-safe).
func (t *Task) GetStatus() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// GetErr returns the failure cause (thread-safe).
func (t *Task) GetErr() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Err
}

// SetProgress updates the task progress, clamped to 0-100 (thread-safe).
func (t *Task) SetProgress(progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Progress = max(0, min(progress, 100))
}

// GetProgress returns the current progress (thread-safe).
func (t *Task) GetProgress() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Progress
}

// Duration returns how long the task has been running or took to complete.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.StartTime.IsZero() {
		return 0
	}
	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// IsComplete returns true if the task has finished (success, failure, or canceled).
func (t *Task) IsComplete() bool {
	return t.GetStatus().Terminal()
}

// Clone creates a copy of the task for reading.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return &Task{
		ID:          t.ID,
		Description: t.Description,
		Path:        t.Path,
		Status:      t.Status,
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
		Err:         t.Err,
		Progress:    t.Progress,
	}
}

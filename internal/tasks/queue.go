// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// TASK QUEUE
// =============================================================================

// Queue is the registry of submitted tasks. It records state changes and
// reports every terminal transition to the notifier.
type Queue struct {
	// tasks is the list of all tasks (both queued and completed)
	tasks []*Task

	// running tracks currently running tasks by ID
	running map[string]*Task

	// maxHistory is the maximum number of completed tasks to keep
	maxHistory int

	// notifier receives terminal transitions, outside the lock
	notifier func(TaskNotification)

	mu sync.RWMutex
}

// TaskNotification describes a task that reached a terminal state.
type TaskNotification struct {
	TaskID      string
	Description string
	Path        string
	Status      TaskStatus
	Err         error
	Duration    time.Duration
}

// NewQueue creates a registry. maxHistory bounds the number of finished
// tasks kept (0 = unlimited). notifier may be nil.
func NewQueue(maxHistory int, notifier func(TaskNotification)) *Queue {
	return &Queue{
		running:    make(map[string]*Task),
		maxHistory: maxHistory,
		notifier:   notifier,
	}
}

// =============================================================================
// TASK MANAGEMENT
// =============================================================================

// Add registers a queued task.
func (q *Queue) Add(task *Task) error {
	if task.GetStatus() != TaskStatusQueued {
		return fmt.Errorf("task %s is %s, not queued", task.ID, task.GetStatus())
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

// Cancel cancels a queued or running task by ID.
// Returns true if the task was canceled.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	var target *Task
	for _, task := range q.tasks {
		if task.ID == id {
			target = task
			break
		}
	}
	q.mu.Unlock()

	if target == nil || !target.Cancel() {
		return false
	}
	q.settled(target, TaskStatusCanceled)
	return true
}

// markRunning records that a worker picked the task up.
func (q *Queue) markRunning(task *Task, cancel func()) error {
	if err := task.markStarted(cancel); err != nil {
		return err
	}
	q.mu.Lock()
	q.running[task.ID] = task
	q.mu.Unlock()
	return nil
}

// markFinished records the terminal outcome and notifies.
func (q *Queue) markFinished(task *Task, status TaskStatus, err error) {
	if !task.finish(status, err) {
		// Canceled through Cancel, which already notified
		q.mu.Lock()
		delete(q.running, task.ID)
		q.mu.Unlock()
		return
	}
	q.settled(task, status)
}

func (q *Queue) settled(task *Task, status TaskStatus) {
	q.mu.Lock()
	delete(q.running, task.ID)
	q.cleanupLocked()
	q.mu.Unlock()

	if q.notifier != nil {
		q.notifier(TaskNotification{
			TaskID:      task.ID,
			Description: task.Description,
			Path:        task.Path,
			Status:      status,
			Err:         task.GetErr(),
			Duration:    task.Duration(),
		})
	}
}

// =============================================================================
// QUEUE QUERIES
// =============================================================================

// Running returns snapshots of all running tasks, oldest first.
func (q *Queue) Running() []*Task {
	q.mu.RLock()
	result := make([]*Task, 0, len(q.running))
	for _, task := range q.running {
		result = append(result, task.Clone())
	}
	q.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result
}

// Pending returns the number of tasks that have not finished, queued or
// running.
func (q *Queue) Pending() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	n := 0
	for _, task := range q.tasks {
		if !task.IsComplete() {
			n++
		}
	}
	return n
}

// =============================================================================
// CLEANUP
// =============================================================================

// cleanupLocked drops the oldest finished tasks beyond maxHistory.
// Must be called with lock held.
func (q *Queue) cleanupLocked() {
	if q.maxHistory <= 0 {
		return
	}

	completedCount := 0
	for _, task := range q.tasks {
		if task.IsComplete() {
			completedCount++
		}
	}
	if completedCount <= q.maxHistory {
		return
	}

	toRemove := completedCount - q.maxHistory
	kept := make([]*Task, 0, len(q.tasks)-toRemove)
	for _, task := range q.tasks {
		if task.IsComplete() && toRemove > 0 {
			toRemove--
			continue
		}
		kept = append(kept, task)
	}
	q.tasks = kept
}

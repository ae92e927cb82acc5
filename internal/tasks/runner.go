// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrRunnerStopped is returned by Submit after Stop.
var ErrRunnerStopped = errors.New("tasks: runner stopped")

// DefaultMaxConcurrent is used when a runner is created with a non-positive
// limit.
const DefaultMaxConcurrent = 4

// =============================================================================
// TASK RUNNER
// =============================================================================

// Runner executes submitted tasks, each on its own goroutine, with at most
// maxConcurrent running at once. Every task context derives from the
// runner's parent context, and Stop joins all of them.
type Runner struct {
	queue       *Queue
	ctx         context.Context
	cancel      context.CancelFunc
	log         logrus.FieldLogger
	semaphore   chan struct{} // Limits concurrently running tasks
	taskTimeout time.Duration // 0 = no timeout

	mu      sync.Mutex // Orders Submit against Stop
	stopped bool
	wg      sync.WaitGroup
}

// NewRunner creates a runner bound to parent. Canceling parent cancels
// every task.
func NewRunner(parent context.Context, queue *Queue, maxConcurrent int, taskTimeout time.Duration, log logrus.FieldLogger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Runner{
		queue:       queue,
		ctx:         ctx,
		cancel:      cancel,
		log:         log,
		semaphore:   make(chan struct{}, maxConcurrent),
		taskTimeout: taskTimeout,
	}
}

// Queue returns the runner's task registry.
func (r *Runner) Queue() *Queue { return r.queue }

// =============================================================================
// RUNNER LIFECYCLE
// =============================================================================

// Submit registers task and starts its goroutine. It never waits for a
// worker slot, so it is safe to call from the render loop.
func (r *Runner) Submit(task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRunnerStopped
	}
	if err := r.queue.Add(task); err != nil {
		return err
	}

	r.wg.Add(1)
	go r.executeTask(task)
	return nil
}

// Stop cancels all tasks and waits for their goroutines to exit.
// Safe to call more than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// Wait blocks until every submitted task has finished without canceling
// anything.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// =============================================================================
// TASK PROCESSING
// =============================================================================

// executeTask waits for a slot, then runs a single task.
func (r *Runner) executeTask(task *Task) {
	defer r.wg.Done()
	log := r.log.WithFields(logrus.Fields{"task_id": task.ID, "file": task.Path})

	select {
	case r.semaphore <- struct{}{}:
	case <-r.ctx.Done():
		// Stopped while waiting for a slot
		if task.Cancel() {
			r.queue.settled(task, TaskStatusCanceled)
		}
		return
	}
	defer func() { <-r.semaphore }()

	if r.ctx.Err() != nil {
		// Slot freed by a task that was itself stopped
		if task.Cancel() {
			r.queue.settled(task, TaskStatusCanceled)
		}
		return
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if r.taskTimeout > 0 {
		ctx, cancel = context.WithTimeout(r.ctx, r.taskTimeout)
	} else {
		ctx, cancel = context.WithCancel(r.ctx)
	}
	defer cancel()

	if err := r.queue.markRunning(task, cancel); err != nil {
		// Canceled while queued
		log.WithError(err).Debug("task not started")
		return
	}
	log.Debug("task started")

	err := r.run(ctx, task)

	switch {
	case err == nil:
		r.queue.markFinished(task, TaskStatusComplete, nil)
		log.WithField("duration", task.Duration()).Info("task complete")
	case errors.Is(ctx.Err(), context.Canceled):
		r.queue.markFinished(task, TaskStatusCanceled, err)
		log.Info("task canceled")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("task timeout after %v: %w", r.taskTimeout, err)
		r.queue.markFinished(task, TaskStatusFailed, err)
		log.WithError(err).Warn("task timed out")
	default:
		r.queue.markFinished(task, TaskStatusFailed, err)
		log.WithError(err).Warn("task failed")
	}
}

// run invokes the task body, turning a panic into a failure.
func (r *Runner) run(ctx context.Context, task *Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	if task.run == nil {
		return fmt.Errorf("task %s has no body", task.ID)
	}
	return task.run(ctx, task)
}

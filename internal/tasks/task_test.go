// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, task *Task) error { return nil }

// collector records notifications from a queue.
type collector struct {
	mu   sync.Mutex
	seen []TaskNotification
}

func (c *collector) notify(n TaskNotification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, n)
}

func (c *collector) all() []TaskNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TaskNotification(nil), c.seen...)
}

func newTestRunner(t *testing.T, maxConcurrent int) (*Runner, *collector) {
	t.Helper()
	log, _ := test.NewNullLogger()
	c := &collector{}
	r := NewRunner(context.Background(), NewQueue(0, c.notify), maxConcurrent, 0, log)
	t.Cleanup(r.Stop)
	return r, c
}

// =============================================================================
// TASK TESTS
// =============================================================================

func TestNewTask(t *testing.T) {
	task := NewTask("send notes.txt", "/home/u/docs/notes.txt", noop)

	if task.ID == "" {
		t.Error("Task ID should not be empty")
	}
	if task.Path != "/home/u/docs/notes.txt" {
		t.Errorf("Expected path to be kept, got '%s'", task.Path)
	}
	if task.GetStatus() != TaskStatusQueued {
		t.Errorf("Expected status Queued, got %s", task.GetStatus())
	}
}

func TestTaskTransitions(t *testing.T) {
	testCases := []struct {
		from, to TaskStatus
		valid    bool
	}{
		{TaskStatusQueued, TaskStatusRunning, true},
		{TaskStatusQueued, TaskStatusCanceled, true},
		{TaskStatusQueued, TaskStatusComplete, false},
		{TaskStatusRunning, TaskStatusComplete, true},
		{TaskStatusRunning, TaskStatusFailed, true},
		{TaskStatusRunning, TaskStatusCanceled, true},
		{TaskStatusRunning, TaskStatusQueued, false},
		{TaskStatusComplete, TaskStatusFailed, false},
		{TaskStatusFailed, TaskStatusRunning, false},
		{TaskStatusCanceled, TaskStatusRunning, false},
		{TaskStatusRunning, TaskStatusRunning, true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.valid, isValidTransition(tc.from, tc.to))
		})
	}
}

func TestTaskProgress(t *testing.T) {
	task := NewTask("Test", "", noop)

	task.SetProgress(50)
	assert.Equal(t, 50, task.GetProgress())
	task.SetProgress(150)
	assert.Equal(t, 100, task.GetProgress())
	task.SetProgress(-10)
	assert.Equal(t, 0, task.GetProgress())
}

func TestTaskCancel(t *testing.T) {
	task := NewTask("Test", "", noop)
	require.NoError(t, task.SetStatus(TaskStatusRunning))

	if !task.Cancel() {
		t.Error("Cancel should succeed for running task")
	}
	if task.GetStatus() != TaskStatusCanceled {
		t.Error("Task should be canceled")
	}
	if task.Cancel() {
		t.Error("Second cancel should fail")
	}
	assert.Error(t, task.SetStatus(TaskStatusComplete))
}

// =============================================================================
// QUEUE TESTS
// =============================================================================

func TestQueueOperations(t *testing.T) {
	c := &collector{}
	queue := NewQueue(10, c.notify)

	task1 := NewTask("Task 1", "a", noop)
	task2 := NewTask("Task 2", "b", noop)
	require.NoError(t, queue.Add(task1))
	require.NoError(t, queue.Add(task2))
	assert.Empty(t, queue.Running())
	assert.Equal(t, 2, queue.Pending())

	require.NoError(t, queue.markRunning(task2, func() {}))
	assert.Error(t, queue.Add(task2), "only queued tasks can be added")

	running := queue.Running()
	require.Len(t, running, 1)
	assert.Equal(t, "Task 2", running[0].Description)

	assert.True(t, queue.Cancel(task1.ID), "queued tasks can be canceled")
	assert.False(t, queue.Cancel("missing"))
	assert.Equal(t, TaskStatusCanceled, task1.GetStatus())
	assert.Equal(t, 1, queue.Pending())
	require.Len(t, c.all(), 1)
	assert.Equal(t, "a", c.all()[0].Path)
}

func TestQueueRunningOldestFirst(t *testing.T) {
	queue := NewQueue(0, nil)
	var ids []string
	for i := 0; i < 3; i++ {
		task := NewTask("t", "", noop)
		require.NoError(t, queue.Add(task))
		require.NoError(t, queue.markRunning(task, func() {}))
		ids = append(ids, task.ID)
		time.Sleep(time.Millisecond)
	}

	running := queue.Running()
	require.Len(t, running, 3)
	for i, task := range running {
		assert.Equal(t, ids[i], task.ID)
	}
	assert.Equal(t, 3, queue.Pending())
}

func TestQueueHistoryLimit(t *testing.T) {
	queue := NewQueue(2, nil)
	for i := 0; i < 5; i++ {
		task := NewTask("t", "", noop)
		require.NoError(t, queue.Add(task))
		require.NoError(t, queue.markRunning(task, func() {}))
		queue.markFinished(task, TaskStatusComplete, nil)
	}

	queue.mu.RLock()
	defer queue.mu.RUnlock()
	assert.Len(t, queue.tasks, 2)
}

// =============================================================================
// RUNNER TESTS
// =============================================================================

func TestRunner_CompleteAndFail(t *testing.T) {
	r, c := newTestRunner(t, 2)
	boom := errors.New("boom")

	ok := NewTask("ok", "/tmp/ok.txt", noop)
	bad := NewTask("bad", "/tmp/bad.txt", func(ctx context.Context, task *Task) error { return boom })
	require.NoError(t, r.Submit(ok))
	require.NoError(t, r.Submit(bad))
	r.Wait()

	assert.Equal(t, TaskStatusComplete, ok.GetStatus())
	assert.Equal(t, 100, ok.GetProgress())
	assert.Equal(t, TaskStatusFailed, bad.GetStatus())
	assert.ErrorIs(t, bad.GetErr(), boom)

	byPath := map[string]TaskNotification{}
	for _, n := range c.all() {
		byPath[n.Path] = n
	}
	require.Len(t, byPath, 2)
	assert.Equal(t, TaskStatusComplete, byPath["/tmp/ok.txt"].Status)
	assert.Equal(t, TaskStatusFailed, byPath["/tmp/bad.txt"].Status)
	assert.ErrorIs(t, byPath["/tmp/bad.txt"].Err, boom)
}

func TestRunner_BoundedConcurrency(t *testing.T) {
	const limit = 3
	r, c := newTestRunner(t, limit)

	var current, peak atomic.Int32
	release := make(chan struct{})
	body := func(ctx context.Context, task *Task) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		current.Add(-1)
		return nil
	}

	for i := 0; i < 10; i++ {
		require.NoError(t, r.Submit(NewTask("t", "", body)))
	}

	require.Eventually(t, func() bool { return current.Load() == limit }, time.Second, 5*time.Millisecond)
	close(release)
	r.Wait()

	assert.Equal(t, int32(limit), peak.Load())
	assert.Len(t, c.all(), 10)
}

func TestRunner_StopCancelsAndJoins(t *testing.T) {
	r, c := newTestRunner(t, 1)

	started := make(chan struct{})
	running := NewTask("long", "long.bin", func(ctx context.Context, task *Task) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	waiting := NewTask("waiting", "waiting.bin", noop)

	require.NoError(t, r.Submit(running))
	<-started
	require.NoError(t, r.Submit(waiting))

	r.Stop()

	assert.Equal(t, TaskStatusCanceled, running.GetStatus())
	assert.Equal(t, TaskStatusCanceled, waiting.GetStatus())
	assert.Len(t, c.all(), 2)
	assert.ErrorIs(t, r.Submit(NewTask("late", "", noop)), ErrRunnerStopped)
}

func TestRunner_ParentContextCancels(t *testing.T) {
	log, _ := test.NewNullLogger()
	parent, cancel := context.WithCancel(context.Background())
	r := NewRunner(parent, NewQueue(0, nil), 1, 0, log)

	task := NewTask("long", "", func(ctx context.Context, task *Task) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, r.Submit(task))
	cancel()
	r.Wait()

	assert.Equal(t, TaskStatusCanceled, task.GetStatus())
}

func TestRunner_Timeout(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := NewRunner(context.Background(), NewQueue(0, nil), 1, 20*time.Millisecond, log)
	defer r.Stop()

	task := NewTask("slow", "", func(ctx context.Context, task *Task) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, r.Submit(task))
	r.Wait()

	assert.Equal(t, TaskStatusFailed, task.GetStatus())
	assert.Contains(t, task.GetErr().Error(), "timeout")
}

func TestRunner_QueueCancelNotifiesOnce(t *testing.T) {
	r, c := newTestRunner(t, 1)

	started := make(chan struct{})
	task := NewTask("long", "x", func(ctx context.Context, task *Task) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, r.Submit(task))
	<-started

	assert.True(t, r.Queue().Cancel(task.ID))
	r.Wait()

	assert.Equal(t, TaskStatusCanceled, task.GetStatus())
	assert.Len(t, c.all(), 1)
	assert.Empty(t, r.Queue().Running())
	assert.Zero(t, r.Queue().Pending())
}

func TestRunner_PanicBecomesFailure(t *testing.T) {
	r, _ := newTestRunner(t, 1)
	task := NewTask("panics", "", func(ctx context.Context, task *Task) error {
		panic("kaboom")
	})
	require.NoError(t, r.Submit(task))
	r.Wait()

	assert.Equal(t, TaskStatusFailed, task.GetStatus())
	assert.Contains(t, task.GetErr().Error(), "kaboom")
}

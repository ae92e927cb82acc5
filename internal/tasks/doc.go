// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs supervised background work such as outbound file
// transfers.
//
// # Key Types
//
//   - Task: one unit of work with a validated status machine
//   - Queue: registry of tasks that reports terminal transitions
//   - Runner: executes tasks with bounded concurrency, bound to a parent context
//   - TaskStatus: Queued, Running, Complete, Failed, Canceled
//
// # Usage
//
//	queue := tasks.NewQueue(50, func(n tasks.TaskNotification) {
//	    // post a completion or failure message
//	})
//	runner := tasks.NewRunner(sessionCtx, queue, 4, 0, log)
//	err := runner.Submit(tasks.NewTask("send report.pdf", path, sendFunc))
//
//	// On shutdown, cancel and join every worker
//	runner.Stop()
package tasks

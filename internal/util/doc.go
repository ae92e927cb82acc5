// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across opentalk.
//
// # Key Functions
//
// String Utilities:
//   - TruncateWidth, StringWidth: display-width aware (go-runewidth)
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - SingleLine: collapse whitespace in peer-supplied labels
//   - StripControl: drop terminal control characters from peer text
//
// File Operations:
//   - AtomicWriteFile: crash-safe write with fsync and rename
//   - CreateTempBeside, PublishTemp: the same pattern split in two, for
//     files that are streamed in over time
//
// # Usage
//
//	f, err := util.CreateTempBeside(dst)
//	// ... write chunks to f ...
//	err = util.PublishTemp(f, dst, 0644)
package util

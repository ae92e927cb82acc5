// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// RetrieveDoneMsg reports the end of a download started from a file offer.
// Dst is the absolute destination on success.
type RetrieveDoneMsg struct {
	Name  string
	Dst   string
	Bytes int64
	Err   error
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transfer stages inbound files and copies staged files to a
// user-chosen destination.
//
// # Staging
//
// The receive loop drives a Stager with Begin, Write and Commit. Peer names
// are reduced to a base component, so staged files always land in the
// staging directory as <prefix><name> (prefix "temp_" by default).
//
// # Retrieval
//
// Retrieve copies a staged file in fixed CopyChunkSize pieces. It opens the
// source before creating the destination and reports failures as
// *RetrieveError.
//
// # Usage
//
//	name, err := stager.Begin(id, "report.pdf", size)
//	err = stager.Write(id, chunk)
//	name, err = stager.Commit(id)
//
//	abs, n, err := transfer.Retrieve(stager.Path(name), dst)
package transfer

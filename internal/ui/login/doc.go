// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package login is the login form shown before a session exists.
//
// The form collects a display name, a relay address and a port, and hands
// them to a bootstrap function on Enter. Incomplete input is ignored without
// comment. A failed connection shows a one-shot modal and leaves the form as
// it was; nothing is retried. A successful connection is reported with
// LoggedInMsg, which the app model answers by swapping in the chat screen.
package login

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session turns login credentials into a live chat session.
//
// Bootstrap validates the credentials, dials the relay and returns a
// Session that owns everything the chat screen needs: the connection, the
// dispatch queue and its producer API, the inbound stager, and the runner
// for outbound file transfers. All of it is tied to one context, so Close
// stops every worker and waits for them before closing the queue.
//
// # Usage
//
//	s, err := session.Bootstrap(ctx, creds, deps)
//	switch {
//	case errors.Is(err, session.ErrIncomplete):
//	    // leave the login form as it is
//	case err != nil:
//	    // show "Connection failed! Check the address and port."
//	}
//	defer s.Close()
package session

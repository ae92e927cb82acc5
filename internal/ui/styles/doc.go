// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the opentalk screens.
//
// All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
// detection. NewTheme inspects the terminal with termenv and builds the
// styles for the three message treatments: system lines, the user's own
// bubbles, and peer bubbles with a sender label.
package styles

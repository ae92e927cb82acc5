// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
)

// UNICODE: Width-aware helpers. Sender labels and file names arrive from
// peers and may contain CJK or emoji, which occupy two terminal columns.

// TruncateWidth truncates s to at most maxWidth display columns, appending
// "..." when something was cut and there is room for it.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// StringWidth returns the display width of s.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// TruncateRunes truncates s to maxRunes characters, appending "..." when
// truncated. Safe for multi-byte UTF-8.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// SingleLine collapses newlines and tabs so a peer-supplied label cannot
// break the row layout.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripControl drops control characters, including ESC and the C1 range,
// so peer text cannot carry terminal escape sequences. Newlines and tabs
// are kept.
func StripControl(s string) string {
	clean := true
	for _, r := range s {
		if isStripped(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isStripped(r) {
			return -1
		}
		return r
	}, s)
}

func isStripped(r rune) bool {
	return r != '\n' && r != '\t' && unicode.IsControl(r)
}

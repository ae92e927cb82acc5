// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transfer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultStagingPrefix is prepended to the original name of every
	// staged file.
	DefaultStagingPrefix = "temp_"

	// CopyChunkSize is the buffer size used by Retrieve.
	CopyChunkSize = 4096
)

// ErrInvalidName is returned when an announced file name has no usable
// base component.
var ErrInvalidName = errors.New("transfer: invalid file name")

// =============================================================================
// NAMES
// =============================================================================

// SanitizeName reduces a peer-supplied name to its NFC-normalized base
// component. Both slash styles are treated as separators so a name can
// never address a path outside the staging directory.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = norm.NFC.String(strings.TrimSpace(name))

	switch name {
	case "", ".", "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: contains NUL", ErrInvalidName)
	}
	return name, nil
}

// StagedPath returns where a file announced as name is staged.
func StagedPath(dir, prefix, name string) string {
	return filepath.Join(dir, prefix+name)
}

// SuggestedName is the default destination name offered on retrieval. Offers
// carry the original name, so this is its base component.
func SuggestedName(name string) string {
	return filepath.Base(name)
}

// OfferLabel is the text shown on a file-offer control.
func OfferLabel(name string) string {
	return name + " (download)"
}

// =============================================================================
// ANNOUNCEMENTS
// =============================================================================

// StartedAnnouncement is posted the moment an outbound transfer is chosen.
// Only the final path component is shown.
func StartedAnnouncement(path string) string {
	return "File transfer started: " + filepath.Base(path)
}

// CompleteAnnouncement is posted when an outbound transfer finishes.
func CompleteAnnouncement(path string) string {
	return "File transfer complete: " + filepath.Base(path)
}

// FailedAnnouncement is posted when an outbound transfer fails.
func FailedAnnouncement(path string, err error) string {
	return fmt.Sprintf("File transfer failed: %s: %v", filepath.Base(path), err)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package event

// Bucket is the rendering treatment chosen for an event.
type Bucket int

const (
	// BucketSystem renders centered with plain system styling.
	BucketSystem Bucket = iota

	// BucketOwn renders right-aligned as a self bubble with no label.
	BucketOwn

	// BucketPeer renders left-aligned with a sender label above the bubble.
	BucketPeer
)

// String returns the bucket name.
func (b Bucket) String() string {
	switch b {
	case BucketSystem:
		return "system"
	case BucketOwn:
		return "own"
	case BucketPeer:
		return "peer"
	default:
		return "unknown"
	}
}

// Classify maps a sender and ownership flag to a bucket.
// The system sentinel wins over isOwn.
func Classify(sender string, isOwn bool) Bucket {
	if sender == SystemSender {
		return BucketSystem
	}
	if isOwn {
		return BucketOwn
	}
	return BucketPeer
}

// Bucket classifies the event.
func (e Event) Bucket() Bucket {
	return Classify(e.Sender, e.IsOwn)
}

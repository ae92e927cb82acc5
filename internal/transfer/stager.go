// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transfer

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/opentalk-tui/internal/util"
)

var (
	// ErrUnknownTransfer is returned for chunks or ends with no matching begin.
	ErrUnknownTransfer = errors.New("transfer: unknown transfer id")

	// ErrDuplicateTransfer is returned when a begin reuses an active id.
	ErrDuplicateTransfer = errors.New("transfer: transfer id already active")

	// ErrSizeMismatch is returned when the received byte count differs from
	// the announced size.
	ErrSizeMismatch = errors.New("transfer: size mismatch")
)

// =============================================================================
// STAGER
// =============================================================================

// Stager materializes inbound files in the staging directory.
//
// Bytes are written to a hidden temp file and renamed to
// <dir>/<prefix><name> only when the transfer completes, so a reader never
// sees a torn file. Two transfers with the same name are not disambiguated:
// the last one to complete replaces the other.
type Stager struct {
	dir    string
	prefix string
	log    logrus.FieldLogger

	mu     sync.Mutex
	active map[string]*incoming
}

type incoming struct {
	name    string
	size    int64
	written int64
	file    *os.File
}

// NewStager creates a stager rooted at dir. An empty dir means the working
// directory.
func NewStager(dir, prefix string, log logrus.FieldLogger) *Stager {
	if dir == "" {
		dir = "."
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Stager{
		dir:    dir,
		prefix: prefix,
		log:    log,
		active: make(map[string]*incoming),
	}
}

// Dir returns the staging directory.
func (s *Stager) Dir() string { return s.dir }

// Path returns the staged location of a committed file.
func (s *Stager) Path(name string) string {
	return StagedPath(s.dir, s.prefix, name)
}

// Begin opens a new inbound transfer. size is the announced length, or a
// negative value when unknown. It returns the sanitized name.
func (s *Stager) Begin(id, name string, size int64) (string, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrDuplicateTransfer, id)
	}

	f, err := util.CreateTempBeside(s.Path(clean))
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", clean, err)
	}

	s.active[id] = &incoming{name: clean, size: size, file: f}
	s.log.WithFields(logrus.Fields{
		"transfer_id": id,
		"file":        clean,
		"size":        size,
	}).Debug("staging started")
	return clean, nil
}

// Write appends a chunk to an active transfer.
func (s *Stager) Write(id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.active[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransfer, id)
	}
	n, err := in.file.Write(data)
	in.written += int64(n)
	if err != nil {
		return fmt.Errorf("stage %s: %w", in.name, err)
	}
	return nil
}

// Commit finishes a transfer and publishes the staged file. It returns the
// sanitized name the file was staged under. On error the temp file is
// removed and any previously staged file of that name is left in place.
func (s *Stager) Commit(id string) (string, error) {
	s.mu.Lock()
	in, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTransfer, id)
	}

	if in.size >= 0 && in.written != in.size {
		discard(in.file)
		return "", fmt.Errorf("%w: %s: got %d bytes, want %d", ErrSizeMismatch, in.name, in.written, in.size)
	}

	if err := util.PublishTemp(in.file, s.Path(in.name), 0644); err != nil {
		return "", fmt.Errorf("stage %s: %w", in.name, err)
	}

	s.log.WithFields(logrus.Fields{
		"transfer_id": id,
		"file":        in.name,
		"bytes":       in.written,
	}).Info("file staged")
	return in.name, nil
}

// Abort discards an active transfer. It returns the name it was staging, or
// "" if id was not active.
func (s *Stager) Abort(id string) string {
	s.mu.Lock()
	in, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()

	if !ok {
		return ""
	}
	discard(in.file)
	s.log.WithFields(logrus.Fields{"transfer_id": id, "file": in.name}).Warn("staging aborted")
	return in.name
}

// AbortAll discards every active transfer, returning their names.
func (s *Stager) AbortAll() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name := s.Abort(id); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Active returns the number of transfers in progress.
func (s *Stager) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func discard(f *os.File) {
	f.Close()
	os.Remove(f.Name())
}

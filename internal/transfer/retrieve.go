// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrSameFile is returned when the destination is the staged file itself.
var ErrSameFile = errors.New("destination is the staged file")

// RetrieveError describes a failed retrieval.
type RetrieveError struct {
	Op   string // "open", "create", "read", "write", "close"
	Path string
	Err  error
}

func (e *RetrieveError) Error() string {
	return fmt.Sprintf("retrieve: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RetrieveError) Unwrap() error {
	return e.Err
}

// Retrieve copies the staged file src to dst in CopyChunkSize pieces and
// returns the absolute destination path and the number of bytes copied.
//
// src is opened before dst is created, so a missing source never leaves an
// empty destination behind. The staged file is not removed, and a
// destination that resolves to it is refused with ErrSameFile.
func Retrieve(src, dst string) (string, int64, error) {
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return "", 0, &RetrieveError{Op: "resolve", Path: dst, Err: err}
	}

	in, err := os.Open(src)
	if err != nil {
		return "", 0, &RetrieveError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return "", 0, &RetrieveError{Op: "open", Path: src, Err: err}
	}
	if dstInfo, err := os.Stat(absDst); err == nil && os.SameFile(srcInfo, dstInfo) {
		return "", 0, &RetrieveError{Op: "create", Path: absDst, Err: ErrSameFile}
	}

	out, err := os.OpenFile(absDst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", 0, &RetrieveError{Op: "create", Path: absDst, Err: err}
	}

	n, cerr := copyChunks(out, in)
	if cerr != nil {
		out.Close()
		return "", n, cerr.withPath(src, absDst)
	}
	if err := out.Close(); err != nil {
		return "", n, &RetrieveError{Op: "close", Path: absDst, Err: err}
	}
	return absDst, n, nil
}

type copyErr struct {
	read bool
	err  error
}

func (c *copyErr) withPath(src, dst string) *RetrieveError {
	if c.read {
		return &RetrieveError{Op: "read", Path: src, Err: c.err}
	}
	return &RetrieveError{Op: "write", Path: dst, Err: c.err}
}

// copyChunks reads at most CopyChunkSize bytes at a time and writes exactly
// what was read.
func copyChunks(w io.Writer, r io.Reader) (int64, *copyErr) {
	buf := make([]byte, CopyChunkSize)
	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, &copyErr{err: werr}
			}
			if wn != n {
				return total, &copyErr{err: io.ErrShortWrite}
			}
		}
		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			return total, &copyErr{read: true, err: rerr}
		}
	}
}

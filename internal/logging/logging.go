// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the logrus loggers used by both binaries.
//
// The client's TUI owns the terminal, so its logger writes to a file. The
// relay has no TUI and logs to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Options selects the log destination and verbosity.
type Options struct {
	// File is the log file path; empty discards output
	File string
	// Level is a logrus level name; empty means info
	Level string
	// Debug forces the debug level
	Debug bool
}

// Setup opens opts.File for appending and returns a logger writing to it.
// Close the returned io.Closer on exit.
func Setup(opts Options) (*logrus.Logger, io.Closer, error) {
	level, err := parseLevel(opts)
	if err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: true,
	})

	if opts.File == "" {
		log.SetOutput(io.Discard)
		return log, io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return log, f, nil
}

// NewStderr returns a logger writing to stderr.
func NewStderr(opts Options) (*logrus.Logger, error) {
	level, err := parseLevel(opts)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}

func parseLevel(opts Options) (logrus.Level, error) {
	if opts.Debug {
		return logrus.DebugLevel, nil
	}
	if opts.Level == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

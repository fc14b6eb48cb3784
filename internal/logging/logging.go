// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured logger shared by mentorbot components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Prefix is printed before every log line.
const Prefix = "mentorbot"

// Options configures New.
type Options struct {
	// Level is parsed with log.ParseLevel. Empty means info.
	Level string
	// File receives output when set. "/dev/stderr" and "/dev/stdout" name
	// the standard streams.
	File string
	// ForceFile sends output to File even when it is empty, falling back to
	// a discard logger. The TUI sets it because stderr belongs to the screen.
	ForceFile bool
}

// New builds a logger and returns a close function for the underlying file.
func New(opts Options) (*log.Logger, func() error, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		l, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}

	out, closeFn, err := openOutput(opts)
	if err != nil {
		return nil, nil, err
	}

	logger := log.NewWithOptions(out, log.Options{
		Prefix:          Prefix,
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	return logger, closeFn, nil
}

func openOutput(opts Options) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch opts.File {
	case "":
		if opts.ForceFile {
			return io.Discard, noop, nil
		}
		return os.Stderr, noop, nil
	case "/dev/stderr":
		return os.Stderr, noop, nil
	case "/dev/stdout":
		return os.Stdout, noop, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f.Close, nil
}

// Discard returns a logger that drops everything. Components use it when
// no logger is configured.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel + 1})
}

// OrDiscard returns l, or a discard logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

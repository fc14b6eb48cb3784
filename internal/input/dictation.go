// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package input

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// DICTATION WATCHER
// =============================================================================

// Dictation follows a transcript file written by a speech recognizer. Every
// complete line appended to the file becomes one submission; a trailing
// line without a newline waits for the rest of it.
//
// The parent directory is watched rather than the file, so the transcript
// may be created late, truncated, or replaced by rename.
type Dictation struct {
	path      string
	fromStart bool
	logger    *log.Logger
	ready     chan struct{}

	offset  int64
	partial []byte
}

// DictationOption configures a Dictation.
type DictationOption func(*Dictation)

// FromStart submits the lines already in the file instead of skipping them.
func FromStart() DictationOption {
	return func(d *Dictation) { d.fromStart = true }
}

// WithDictationLogger sets the logger for watcher errors.
func WithDictationLogger(l *log.Logger) DictationOption {
	return func(d *Dictation) { d.logger = l }
}

// NewDictation creates a watcher for the transcript at path.
func NewDictation(path string, opts ...DictationOption) *Dictation {
	d := &Dictation{path: filepath.Clean(path), ready: make(chan struct{})}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the watched transcript file.
func (d *Dictation) Path() string {
	return d.path
}

// Ready is closed once Run has started watching. Lines appended after
// that are never missed.
func (d *Dictation) Ready() <-chan struct{} {
	return d.ready
}

// Run watches the transcript until ctx is done, calling submit with each
// recognized line. It returns nil when ctx ends and an error if the
// watcher could not be started.
func (d *Dictation) Run(ctx context.Context, submit func(text string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(d.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(d.path), err)
	}

	if info, err := os.Stat(d.path); err == nil && !d.fromStart {
		d.offset = info.Size()
	}
	close(d.ready)
	d.drain(submit)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != d.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				d.rewind()
			case event.Has(fsnotify.Create):
				d.rewind()
				d.drain(submit)
			case event.Has(fsnotify.Write):
				d.drain(submit)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.warn("Transcript watcher error", "err", err)
		}
	}
}

// rewind forgets the read position after the file was replaced.
func (d *Dictation) rewind() {
	d.offset = 0
	d.partial = nil
}

// drain reads everything appended since the last read and submits each
// complete non-blank line.
func (d *Dictation) drain(submit func(string)) {
	f, err := os.Open(d.path)
	if err != nil {
		if !os.IsNotExist(err) {
			d.warn("Cannot open transcript", "path", d.path, "err", err)
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		d.warn("Cannot stat transcript", "path", d.path, "err", err)
		return
	}
	if info.Size() < d.offset {
		// Truncated in place.
		d.rewind()
	}
	if _, err := f.Seek(d.offset, io.SeekStart); err != nil {
		d.warn("Cannot seek transcript", "path", d.path, "err", err)
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		d.warn("Cannot read transcript", "path", d.path, "err", err)
		return
	}
	d.offset += int64(len(data))

	buf := append(d.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(buf[:i]))
		buf = buf[i+1:]
		if line != "" {
			submit(line)
		}
	}
	d.partial = append([]byte(nil), buf...)
}

func (d *Dictation) warn(msg string, kv ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, kv...)
	}
}

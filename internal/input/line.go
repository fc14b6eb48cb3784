// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package input

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/peterh/liner"
)

// ErrInterrupted is returned by ReadLine when the user pressed Ctrl+C.
var ErrInterrupted = errors.New("input interrupted")

// Source reads one line of user input. It returns io.EOF when input ends.
type Source interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// =============================================================================
// LINE EDITOR
// =============================================================================

// LineReader reads lines from the terminal with arrow-key editing and a
// persistent history.
type LineReader struct {
	line        *liner.State
	historyFile string
	logger      *log.Logger
}

// NewLineReader creates a LineReader. An empty historyFile disables
// history persistence.
func NewLineReader(historyFile string, logger *log.Logger) *LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &LineReader{
		line:        line,
		historyFile: historyFile,
		logger:      logger,
	}
	r.loadHistory()
	return r
}

func (r *LineReader) loadHistory() {
	if r.historyFile == "" {
		return
	}
	f, err := os.Open(r.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := r.line.ReadHistory(f); err != nil && r.logger != nil {
		r.logger.Warn("Could not read input history", "path", r.historyFile, "err", err)
	}
}

// ReadLine prompts and returns the entered line. Non-blank lines are added
// to the history.
func (r *LineReader) ReadLine(prompt string) (string, error) {
	text, err := r.line.Prompt(prompt)
	switch {
	case errors.Is(err, liner.ErrPromptAborted):
		return "", ErrInterrupted
	case err != nil:
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		r.line.AppendHistory(text)
	}
	return text, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (r *LineReader) Close() error {
	defer r.line.Close()
	if r.historyFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = r.line.WriteHistory(f)
	return err
}

// =============================================================================
// PLAIN READER
// =============================================================================

// ScanReader reads lines from any reader without editing. It is used when
// stdin is not a terminal.
type ScanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewScanReader reads lines from in. Prompts are written to out when it is
// not nil.
func NewScanReader(in io.Reader, out io.Writer) *ScanReader {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ScanReader{scanner: s, out: out}
}

// ReadLine returns the next line without its terminator.
func (r *ScanReader) ReadLine(prompt string) (string, error) {
	if r.out != nil && prompt != "" {
		if _, err := io.WriteString(r.out, prompt); err != nil {
			return "", err
		}
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(r.scanner.Text(), "\r"), nil
}

// Close is a no-op.
func (r *ScanReader) Close() error { return nil }

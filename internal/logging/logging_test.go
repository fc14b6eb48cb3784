// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mentorbot.log")

	logger, closeFn, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Debug("turn finished", "category", "chat", "chunks", 3)
	logger.Info("persisted")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, Prefix)
	assert.Contains(t, out, "turn finished")
	assert.Contains(t, out, "category=chat")
	assert.Contains(t, out, "persisted")
}

func TestNew_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.log")

	logger, closeFn, err := New(Options{Level: "WARN", File: path})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Options{Level: "chatty"})
	require.Error(t, err)
}

func TestNew_ForceFileWithoutPathDiscards(t *testing.T) {
	logger, closeFn, err := New(Options{ForceFile: true})
	require.NoError(t, err)
	logger.Error("nowhere")
	assert.NoError(t, closeFn())
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	d := Discard()
	assert.Same(t, d, OrDiscard(d))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package input supplies the raw text of a turn. A LineReader reads typed
// lines with editing and history; a Dictation watches a transcript file
// that a speech recognizer appends to. Both hand the conversation plain
// strings, so it never knows where the text came from.
package input

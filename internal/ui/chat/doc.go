// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen chat view for the TUI.
//
// The view shows one tab per conversation category. Each tab is backed by a
// conversation.Controller obtained from a conversation.Manager; the
// controllers publish their updates through a Bridge, which coalesces them
// into Bubble Tea messages so a fast stream never floods the event loop.
//
// Key bindings:
//   - Enter submits, Alt+Enter inserts a newline
//   - Tab / Shift+Tab switch category
//   - Ctrl+N starts a new chat in the current category
//   - PgUp / PgDn scroll the transcript
//   - Ctrl+C quits
//
// Lines starting with "/" are commands: /new, /help, /quit.
package chat

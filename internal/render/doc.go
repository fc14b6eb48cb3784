// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns formatted blocks and conversation updates into
// terminal text.
//
// Renderer styles blocks with a styles.Theme: topic headers get an icon,
// list items get tag chips laid out by display width, and inline code is
// syntax highlighted with chroma when it looks like code. Writer is a
// conversation.Renderer for line-oriented commands that prints each block
// of a streaming reply once it can no longer change.
package render

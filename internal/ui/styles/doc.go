// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for mentorbot's terminal
output and TUI.

# Color System (colors.go)

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

  - Purple - assistant messages and topic headers
  - Cyan - brand color and user messages
  - Emerald - completed turns
  - Amber - tags and warnings
  - Rose - failed turns and errors

# Theme (theme.go)

NewTheme builds every lipgloss style from a theme name: "auto" asks termenv
whether the background is dark, "dark" and "light" force one palette, and
"plain" drops all color.

# Terminal (terminal.go)

TTY and width detection with golang.org/x/term, honouring NO_COLOR and
FORCE_COLOR.
*/
package styles

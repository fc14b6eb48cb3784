// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/ui/styles"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders header, transcript, input and status bar. The viewport gets
// whatever height the other parts leave.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	input := m.renderInput()
	status := m.renderStatusBar()

	var helpView string
	if m.showHelp {
		helpView = m.theme.Help.Render(m.help.View(m.keys))
	}

	available := m.height - lipgloss.Height(header) - lipgloss.Height(input) -
		lipgloss.Height(status) - lipgloss.Height(helpView)
	vp := m.viewport
	if available >= 1 && available != vp.Height {
		vp.Height = available
	}

	parts := []string{header, vp.View(), input}
	if helpView != "" {
		parts = append(parts, helpView)
	}
	parts = append(parts, status)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// =============================================================================
// COMPONENTS
// =============================================================================

// renderHeader shows the product name and one tab per category.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("MentorBot")

	tabs := make([]string, len(m.tabs))
	for i, t := range m.tabs {
		label := t.Title
		if m.state[t.Category] != nil && m.state[t.Category].busy {
			label += " " + styles.StatusIndicators.Active
		}
		if i == m.active {
			if m.theme.Plain {
				label = "[" + label + "]"
			} else {
				label = m.theme.HeaderTitle.Underline(true).Render(label)
			}
		} else {
			label = m.theme.HeaderSubtitle.Render(label)
		}
		tabs[i] = label
	}

	line := title + "  " + strings.Join(tabs, "  ")
	return m.theme.Header.MaxWidth(m.width).Render(line)
}

// renderInput shows the text area with a separator above it.
func (m Model) renderInput() string {
	sep := m.theme.StatusMuted.Render(strings.Repeat("─", max(m.width, 1)))
	return sep + "\n" + m.input.View()
}

// renderStatusBar shows the phase of the active tab and the last status
// message.
func (m Model) renderStatusBar() string {
	st := m.tab(m.current())

	var left string
	switch {
	case st.busy && st.view.Phase == conversation.PhaseStreaming:
		left = m.spinner.View() + " answering"
	case st.busy:
		left = m.spinner.View() + " thinking"
	case !st.loaded && st.loadErr == nil:
		left = m.spinner.View() + " loading"
	case st.view.Phase == conversation.PhaseFailed:
		left = m.theme.StatusError.Render(styles.StatusIndicators.Error + " last reply failed")
	default:
		left = m.theme.StatusOK.Render(styles.StatusIndicators.Success)
	}

	if m.status != "" {
		if m.statusErr {
			left += "  " + m.theme.StatusError.Render(m.status)
		} else {
			left += "  " + m.theme.StatusMuted.Render(m.status)
		}
	}

	right := m.help.ShortHelpView(m.keys.ShortHelp())
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return m.theme.StatusBar.Width(m.width).Render(left)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

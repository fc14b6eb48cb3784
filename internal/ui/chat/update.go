// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/model"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case flushMsg:
		return m.handleFlush()

	case LoadedMsg:
		st := m.tab(msg.Category)
		st.loaded = msg.Err == nil
		st.loadErr = msg.Err
		if msg.Err != nil {
			m.setError(fmt.Sprintf("Could not open %s: %v", msg.Category, msg.Err))
		} else if len(msg.Update.Entries) > 0 {
			st.view = msg.Update
		}
		m.refresh(true)
		return m, nil

	case TurnDoneMsg:
		m.tab(msg.Category).busy = false
		switch {
		case msg.Err == nil:
		case errors.Is(msg.Err, conversation.ErrTurnInFlight):
			m.setStatus("Still answering the previous message.")
		default:
			m.setError(msg.Err.Error())
		}
		m.refresh(false)
		return m, nil

	case ResetMsg:
		if msg.Err != nil {
			m.setError(msg.Err.Error())
		} else {
			m.setStatus("Started a new chat.")
		}
		return m, nil

	case SubmitMsg:
		return m.submit(msg.Text)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// Layout: header + viewport + input area + status bar. The view measures
	// the real heights; these are upper bounds.
	const (
		headerHeight    = 2
		inputAreaHeight = 4
		statusBarHeight = 1
	)

	vpHeight := m.height - headerHeight - inputAreaHeight - statusBarHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = vpHeight

	m.input.SetWidth(max(m.width-2, 10))
	m.help.Width = m.width
	if m.theme != nil {
		m.theme.SetSize(m.width, m.height)
	}

	m.refresh(true)
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.NextTab):
		return m.switchTab(1)

	case key.Matches(msg, m.keys.PrevTab):
		return m.switchTab(-1)

	case key.Matches(msg, m.keys.NewChat):
		return m, m.resetCmd(m.current())

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		text := m.input.Value()
		return m.submit(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleFlush applies the updates the Bridge collected since the last flush.
func (m Model) handleFlush() (tea.Model, tea.Cmd) {
	if m.bridge == nil {
		return m, nil
	}
	for _, u := range m.bridge.Drain() {
		st := m.tab(u.Category)
		st.view = u
		st.loaded = true
		if !u.Phase.Final() {
			st.busy = true
		}
	}
	m.refresh(false)
	return m, nil
}

// submit handles a line from the input box or the dictation watcher.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	text = strings.TrimSpace(text)
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runCommand(text)
	}

	cat := m.current()
	st := m.tab(cat)
	if st.busy {
		m.setStatus("Still answering the previous message.")
		return m, nil
	}
	st.busy = true
	m.input.Reset()
	m.clearStatus()
	return m, m.submitCmd(cat, text)
}

// runCommand executes a slash command.
func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	name := strings.ToLower(strings.Fields(line)[0])
	switch name {
	case "/new", "/reset", "/clear":
		return m, m.resetCmd(m.current())
	case "/help", "/?":
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	case "/quit", "/exit", "/q":
		m.quitting = true
		return m, tea.Quit
	}
	m.setError(fmt.Sprintf("Unknown command %s. Try /help.", name))
	return m, nil
}

func (m Model) switchTab(delta int) (tea.Model, tea.Cmd) {
	if len(m.tabs) < 2 {
		return m, nil
	}
	m.active = (m.active + delta + len(m.tabs)) % len(m.tabs)
	m.clearStatus()
	m.refresh(true)
	return m, m.loadCmd(m.current())
}

// =============================================================================
// COMMANDS
// =============================================================================

// loadCmd opens the controller of a category unless it is already open.
func (m Model) loadCmd(cat model.Category) tea.Cmd {
	if m.manager == nil || m.tab(cat).loaded {
		return nil
	}
	ctx, manager := m.ctx, m.manager
	return func() tea.Msg {
		c, err := manager.Get(ctx, cat)
		if err != nil {
			return LoadedMsg{Category: cat, Err: err}
		}
		return LoadedMsg{Category: cat, Update: c.Current()}
	}
}

// submitCmd runs one turn. Progress arrives through the Bridge; the
// returned message only reports completion.
func (m Model) submitCmd(cat model.Category, text string) tea.Cmd {
	if m.manager == nil {
		return nil
	}
	ctx, manager := m.ctx, m.manager
	return func() tea.Msg {
		c, err := manager.Get(ctx, cat)
		if err != nil {
			return TurnDoneMsg{Category: cat, Err: err}
		}
		return TurnDoneMsg{Category: cat, Err: c.SubmitTurn(ctx, text)}
	}
}

func (m Model) resetCmd(cat model.Category) tea.Cmd {
	if m.manager == nil {
		return nil
	}
	ctx, manager := m.ctx, m.manager
	return func() tea.Msg {
		c, err := manager.Get(ctx, cat)
		if err != nil {
			return ResetMsg{Category: cat, Err: err}
		}
		return ResetMsg{Category: cat, Err: c.Reset()}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// refresh re-renders the active transcript into the viewport. It follows
// the bottom when asked to or when the reader was already there.
func (m *Model) refresh(jump bool) {
	follow := jump || m.viewport.AtBottom()
	m.viewport.SetContent(m.Transcript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (m *Model) clearStatus() {
	m.status = ""
	m.statusErr = false
}

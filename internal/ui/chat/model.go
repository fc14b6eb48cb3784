// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/render"
	"github.com/jeranaias/mentorbot/internal/ui/styles"
)

// =============================================================================
// TABS
// =============================================================================

// Tab is one category shown in the header.
type Tab struct {
	Category model.Category
	Title    string
}

// tabState is what the view knows about a tab's controller.
type tabState struct {
	view    conversation.Update
	loaded  bool
	busy    bool
	loadErr error
}

// =============================================================================
// MODEL
// =============================================================================

// Config wires a Model to its conversations.
type Config struct {
	// Context bounds history loads and turns. Defaults to Background.
	Context  context.Context
	Manager  *conversation.Manager
	Bridge   *Bridge
	Theme    *styles.Theme
	Renderer *render.Renderer
	Tabs     []Tab
	// Initial is the index of the tab shown first.
	Initial int
}

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctx      context.Context
	manager  *conversation.Manager
	bridge   *Bridge
	theme    *styles.Theme
	renderer *render.Renderer
	keys     KeyMap

	tabs   []Tab
	active int
	state  map[model.Category]*tabState

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	showHelp bool

	status    string
	statusErr bool

	width    int
	height   int
	quitting bool
}

// New creates the chat model.
func New(cfg Config) Model {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	ta := textarea.New()
	ta.Placeholder = "Type a message... (Enter to send)"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 8000
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: styles.DotsSpinner.Frames,
		FPS:    styles.DotsSpinner.Duration(),
	}
	sp.Style = cfg.Theme.Spinner

	state := make(map[model.Category]*tabState, len(cfg.Tabs))
	for _, t := range cfg.Tabs {
		state[t.Category] = &tabState{}
	}

	active := cfg.Initial
	if active < 0 || active >= len(cfg.Tabs) {
		active = 0
	}

	return Model{
		ctx:      ctx,
		manager:  cfg.Manager,
		bridge:   cfg.Bridge,
		theme:    cfg.Theme,
		renderer: cfg.Renderer,
		keys:     DefaultKeyMap(),
		tabs:     cfg.Tabs,
		active:   active,
		state:    state,
		viewport: viewport.New(0, 0),
		input:    ta,
		spinner:  sp,
		help:     help.New(),
	}
}

// Init loads the first tab.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadCmd(m.current()), m.spinner.Tick)
}

// current returns the active category.
func (m Model) current() model.Category {
	if len(m.tabs) == 0 {
		return model.CategoryChat
	}
	return m.tabs[m.active].Category
}

// tab returns the state of a category, creating it for categories that
// were not configured as tabs.
func (m Model) tab(c model.Category) *tabState {
	st, ok := m.state[c]
	if !ok {
		st = &tabState{}
		m.state[c] = st
	}
	return st
}

// Active returns the category shown on screen.
func (m Model) Active() model.Category {
	return m.current()
}

// Input returns the text currently in the input box.
func (m Model) Input() string {
	return m.input.Value()
}

// Status returns the status bar message.
func (m Model) Status() string {
	return m.status
}

// Transcript returns the rendered transcript of the active tab.
func (m Model) Transcript() string {
	return m.renderer.WithWidth(m.contentWidth()).Transcript(m.tab(m.current()).view)
}

// Busy reports whether a turn is in flight in the active tab.
func (m Model) Busy() bool {
	return m.tab(m.current()).busy
}

func (m Model) contentWidth() int {
	w := m.viewport.Width - 2
	if w < styles.MinTerminalWidth {
		w = styles.MinTerminalWidth
	}
	return w
}

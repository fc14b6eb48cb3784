// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/inference"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/render"
	"github.com/jeranaias/mentorbot/internal/stream"
	"github.com/jeranaias/mentorbot/internal/ui/styles"
)

type backendFunc func(req inference.Request) (stream.ChunkSource, error)

func (f backendFunc) Stream(_ context.Context, req inference.Request) (stream.ChunkSource, error) {
	return f(req)
}

// harness drives a Model synchronously: commands run inline and every
// message the Bridge sends is fed back before the command's own result.
type harness struct {
	t       *testing.T
	m       Model
	mu      sync.Mutex
	pending []tea.Msg
}

func newHarness(t *testing.T, backend inference.Backend) *harness {
	t.Helper()
	h := &harness{t: t}

	bridge := NewBridge()
	bridge.Attach(func(msg tea.Msg) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.pending = append(h.pending, msg)
	})

	greetings := map[model.Category]string{
		model.CategoryChat: "Hi, tell me the role.",
		model.CategoryTodo: "What needs doing?",
	}
	manager := conversation.NewManager(func(c model.Category) (*conversation.Controller, error) {
		return conversation.New(c, backend,
			conversation.WithRenderer(bridge),
			conversation.WithGreeting(greetings[c]),
		), nil
	})
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	theme := styles.NewTheme(styles.ThemePlain, &bytes.Buffer{})
	h.m = New(Config{
		Manager:  manager,
		Bridge:   bridge,
		Theme:    theme,
		Renderer: render.New(theme, render.DefaultOptions(80)),
		Tabs: []Tab{
			{Category: model.CategoryChat, Title: "Interview Coach"},
			{Category: model.CategoryTodo, Title: "To-Do Planner"},
		},
	})
	h.update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	msg := cmd()
	h.drain()
	if msg != nil {
		h.run(h.update(msg))
	}
}

func (h *harness) drain() {
	for {
		h.mu.Lock()
		msgs := h.pending
		h.pending = nil
		h.mu.Unlock()
		if len(msgs) == 0 {
			return
		}
		for _, msg := range msgs {
			h.update(msg)
		}
	}
}

func (h *harness) typeAndSend(text string) {
	h.m.input.SetValue(text)
	h.run(h.update(tea.KeyMsg{Type: tea.KeyEnter}))
}

func replying(chunks ...string) inference.Backend {
	return backendFunc(func(inference.Request) (stream.ChunkSource, error) {
		return stream.FromStrings(chunks...), nil
	})
}

func TestModel_LoadShowsGreeting(t *testing.T) {
	h := newHarness(t, replying("ok"))
	h.run(h.m.loadCmd(model.CategoryChat))

	assert.Contains(t, h.m.Transcript(), "MentorBot:\nHi, tell me the role.")
	assert.False(t, h.m.Busy())
}

func TestModel_SubmitStreamsReply(t *testing.T) {
	h := newHarness(t, replying("≡ Arrays\n", "- **Two Sum** - Arrays - Hashing"))
	h.run(h.m.loadCmd(model.CategoryChat))

	h.typeAndSend("give me a question")

	out := h.m.Transcript()
	assert.Contains(t, out, "You:\ngive me a question")
	assert.Contains(t, out, "≡ Arrays\n• Two Sum [Arrays] [Hashing]")
	assert.False(t, h.m.Busy())
	assert.Empty(t, h.m.Input())
	assert.Empty(t, h.m.Status())
}

func TestModel_FailedTurnShowsIndicator(t *testing.T) {
	h := newHarness(t, backendFunc(func(inference.Request) (stream.ChunkSource, error) {
		return nil, errors.New("connection refused")
	}))
	h.run(h.m.loadCmd(model.CategoryChat))

	h.typeAndSend("hello")

	out := h.m.Transcript()
	assert.Contains(t, out, "[X] MentorBot:\n"+conversation.DefaultFailureMessage)
	assert.Contains(t, h.m.View(), "last reply failed")
}

func TestModel_BlankInputIgnored(t *testing.T) {
	h := newHarness(t, replying("ok"))
	h.m.input.SetValue("   ")
	cmd := h.update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, h.m.Busy())
}

func TestModel_SecondSubmitWhileBusy(t *testing.T) {
	h := newHarness(t, replying("ok"))

	h.m.input.SetValue("first")
	first := h.update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, first)
	assert.True(t, h.m.Busy())

	h.m.input.SetValue("second")
	second := h.update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, second)
	assert.Equal(t, "Still answering the previous message.", h.m.Status())
	assert.Equal(t, "second", h.m.Input())

	h.run(first)
	assert.False(t, h.m.Busy())
}

func TestModel_SlashCommands(t *testing.T) {
	h := newHarness(t, replying("answer"))
	h.run(h.m.loadCmd(model.CategoryChat))
	h.typeAndSend("question")
	require.Contains(t, h.m.Transcript(), "answer")

	h.typeAndSend("/new")
	assert.Equal(t, "Started a new chat.", h.m.Status())
	assert.NotContains(t, h.m.Transcript(), "answer")
	assert.Contains(t, h.m.Transcript(), "Hi, tell me the role.")

	h.typeAndSend("/bogus")
	assert.Contains(t, h.m.Status(), "Unknown command /bogus")

	h.m.input.SetValue("/quit")
	cmd := h.update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_SwitchTabLoadsCategory(t *testing.T) {
	h := newHarness(t, replying("ok"))
	h.run(h.m.loadCmd(model.CategoryChat))

	h.run(h.update(tea.KeyMsg{Type: tea.KeyTab}))
	assert.Equal(t, model.CategoryTodo, h.m.Active())
	assert.Contains(t, h.m.Transcript(), "What needs doing?")

	h.run(h.update(tea.KeyMsg{Type: tea.KeyShiftTab}))
	assert.Equal(t, model.CategoryChat, h.m.Active())
	assert.Contains(t, h.m.Transcript(), "Hi, tell me the role.")
}

func TestModel_SubmitMsgFromDictation(t *testing.T) {
	h := newHarness(t, replying("noted"))
	h.run(h.m.loadCmd(model.CategoryChat))

	h.run(h.update(SubmitMsg{Text: "spoken words\n"}))

	out := h.m.Transcript()
	assert.Contains(t, out, "You:\nspoken words")
	assert.Contains(t, out, "MentorBot:\nnoted")
}

func TestModel_ViewLayout(t *testing.T) {
	h := newHarness(t, replying("ok"))
	h.run(h.m.loadCmd(model.CategoryChat))

	view := h.m.View()
	assert.Contains(t, view, "MentorBot")
	assert.Contains(t, view, "[Interview Coach]")
	assert.Contains(t, view, "To-Do Planner")
	assert.Contains(t, view, styles.StatusIndicators.Success)
}

func TestBridge_Coalesces(t *testing.T) {
	var sends int
	b := NewBridge()
	b.Attach(func(tea.Msg) { sends++ })

	b.Render(conversation.Update{Category: model.CategoryChat, Phase: conversation.PhasePending})
	b.Render(conversation.Update{Category: model.CategoryTodo, Phase: conversation.PhaseLoaded})
	b.Render(conversation.Update{Category: model.CategoryChat, Phase: conversation.PhaseComplete})
	assert.Equal(t, 1, sends)

	got := b.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, model.CategoryChat, got[0].Category)
	assert.Equal(t, conversation.PhaseComplete, got[0].Phase)
	assert.Equal(t, model.CategoryTodo, got[1].Category)

	assert.Empty(t, b.Drain())
	b.Render(conversation.Update{Category: model.CategoryChat})
	assert.Equal(t, 2, sends)
}

func TestBridge_UnattachedKeepsUpdates(t *testing.T) {
	b := NewBridge()
	b.Render(conversation.Update{Category: model.CategoryChat, Phase: conversation.PhaseLoaded})
	assert.Len(t, b.Drain(), 1)
}

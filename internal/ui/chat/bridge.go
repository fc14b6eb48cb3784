// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/model"
)

// =============================================================================
// UPDATE BRIDGE
// =============================================================================

// Bridge is the conversation.Renderer of every TUI controller. It keeps the
// latest Update per category and sends a single flush message to the
// program; further updates arriving before the model drains replace the
// stored ones. Each Update is a full snapshot, so skipping intermediate
// ones loses nothing but frames.
//
// Thread-safety: Render runs on turn goroutines while Drain runs in the
// Bubble Tea loop.
type Bridge struct {
	mu        sync.Mutex
	latest    map[model.Category]conversation.Update
	order     []model.Category
	scheduled bool
	send      func(tea.Msg)
}

// NewBridge creates a Bridge. Call Attach with the program's Send before
// any controller renders.
func NewBridge() *Bridge {
	return &Bridge{latest: make(map[model.Category]conversation.Update)}
}

// Attach sets the function used to wake the program, normally
// (*tea.Program).Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

// Render implements conversation.Renderer.
func (b *Bridge) Render(u conversation.Update) {
	b.mu.Lock()
	if _, ok := b.latest[u.Category]; !ok {
		b.order = append(b.order, u.Category)
	}
	b.latest[u.Category] = u
	if b.scheduled || b.send == nil {
		b.mu.Unlock()
		return
	}
	b.scheduled = true
	send := b.send
	b.mu.Unlock()

	send(flushMsg{})
}

// Drain returns the stored updates in arrival order and clears them.
func (b *Bridge) Drain() []conversation.Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]conversation.Update, 0, len(b.order))
	for _, cat := range b.order {
		out = append(out, b.latest[cat])
	}
	b.latest = make(map[model.Category]conversation.Update)
	b.order = b.order[:0]
	b.scheduled = false
	return out
}

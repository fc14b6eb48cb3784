// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"fmt"

	"github.com/jeranaias/mentorbot/internal/format"
	"github.com/jeranaias/mentorbot/internal/model"
)

// =============================================================================
// PHASES
// =============================================================================

// Phase names the state change an Update reports.
type Phase int

const (
	// PhasePending: the user message and an empty placeholder were appended.
	PhasePending Phase = iota
	// PhaseStreaming: the placeholder holds a new snapshot.
	PhaseStreaming
	// PhaseComplete: the stream ended and the reply is final.
	PhaseComplete
	// PhaseFailed: the stream failed and the placeholder holds the failure
	// message.
	PhaseFailed
	// PhaseLoaded: the conversation was replaced by history, a greeting or a
	// reset.
	PhaseLoaded
)

var phaseNames = [...]string{"pending", "streaming", "complete", "failed", "loaded"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase as its name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Final reports whether the phase ends a turn.
func (p Phase) Final() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// =============================================================================
// UPDATES
// =============================================================================

// Entry is one message as the render target sees it. Blocks is the
// formatted content of assistant and system messages. User messages carry
// no blocks and are shown literally.
type Entry struct {
	Message model.Message
	Blocks  []format.Block
}

// Update is a read-only view of a conversation published after each state
// change. Entries and their Blocks may be shared with other Updates and
// must not be modified.
type Update struct {
	Category model.Category
	Phase    Phase
	Entries  []Entry
}

// Last returns the final entry, which is the in-flight message during a
// turn.
func (u Update) Last() (Entry, bool) {
	if len(u.Entries) == 0 {
		return Entry{}, false
	}
	return u.Entries[len(u.Entries)-1], true
}

// Wire returns the entries as role/content pairs.
func (u Update) Wire() []model.WireMessage {
	out := make([]model.WireMessage, len(u.Entries))
	for i, e := range u.Entries {
		out[i] = e.Message.Wire()
	}
	return out
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Renderer receives every Update. Render is called from the goroutine
// running the turn and should return quickly.
type Renderer interface {
	Render(Update)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Update)

// Render calls f(u).
func (f RendererFunc) Render(u Update) { f(u) }

// Persister stores the finished message list of a category.
type Persister interface {
	Persist(ctx context.Context, category model.Category, msgs []model.WireMessage) error
}

// HistoryLoader returns the stored messages of a category, or nil when
// nothing is stored.
type HistoryLoader interface {
	History(ctx context.Context, category model.Category) ([]model.WireMessage, error)
}

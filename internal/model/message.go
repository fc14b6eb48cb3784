// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleSystem only appears on the wire to an inference backend. It is never
	// stored in a Conversation.
	RoleSystem Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "MentorBot"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r may be stored in a conversation.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single conversation entry. It is a value type: code that needs
// different content builds a new Message rather than editing one in place.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// WithContent returns a copy of m carrying content. ID, role and creation
// time are kept, so renderers can track the message across replacements.
func (m Message) WithContent(content string) Message {
	m.Content = content
	return m
}

// IsBlank reports whether the message has no visible content.
func (m Message) IsBlank() bool {
	return strings.TrimSpace(m.Content) == ""
}

// Preview returns the first line of the content cut to maxRunes.
func (m Message) Preview(maxRunes int) string {
	line := m.Content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	runes := []rune(strings.TrimSpace(line))
	if maxRunes > 0 && len(runes) > maxRunes {
		return string(runes[:maxRunes]) + "..."
	}
	return string(runes)
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// WireMessage is the {role, content} pair exchanged with inference backends
// and the persistence API.
type WireMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Wire drops the local metadata of m.
func (m Message) Wire() WireMessage {
	return WireMessage{Role: m.Role, Content: m.Content}
}

// FromWire converts stored or received pairs into messages with fresh IDs.
// Entries with roles that cannot be stored are skipped.
func FromWire(in []WireMessage) []Message {
	out := make([]Message, 0, len(in))
	for _, w := range in {
		if !w.Role.Valid() {
			continue
		}
		out = append(out, NewMessage(w.Role, w.Content))
	}
	return out
}

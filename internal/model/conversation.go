// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"time"
)

// MaxMessages is the maximum number of messages kept in a conversation.
// When exceeded, the oldest messages are pruned to prevent unbounded growth.
const MaxMessages = 1000

// ErrEmptyConversation is returned by ReplaceLast on a conversation with no
// messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the ordered message list of one category. It is not safe
// for concurrent use; the owning controller serializes access and hands out
// clones.
type Conversation struct {
	Category  Category  `json:"category"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation for category.
func NewConversation(category Category) *Conversation {
	return &Conversation{
		Category:  category,
		Messages:  make([]Message, 0),
		UpdatedAt: time.Now().UTC(),
	}
}

// Append adds msg at the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now().UTC()
	c.prune()
}

// ReplaceLast swaps the last message for a copy carrying content.
func (c *Conversation) ReplaceLast(content string) (Message, error) {
	if len(c.Messages) == 0 {
		return Message{}, ErrEmptyConversation
	}
	i := len(c.Messages) - 1
	c.Messages[i] = c.Messages[i].WithContent(content)
	c.UpdatedAt = time.Now().UTC()
	return c.Messages[i], nil
}

// Reset replaces every message, used when history is loaded.
func (c *Conversation) Reset(msgs []Message) {
	c.Messages = append(make([]Message, 0, len(msgs)), msgs...)
	c.UpdatedAt = time.Now().UTC()
	c.prune()
}

// Last returns the final message, if any.
func (c *Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// Clone returns a deep copy. Messages are values, so copying the slice is
// enough.
func (c *Conversation) Clone() *Conversation {
	return &Conversation{
		Category:  c.Category,
		Messages:  append(make([]Message, 0, len(c.Messages)), c.Messages...),
		UpdatedAt: c.UpdatedAt,
	}
}

// Wire returns the first n messages as {role, content} pairs. n < 0 means
// all of them.
func (c *Conversation) Wire(n int) []WireMessage {
	if n < 0 || n > len(c.Messages) {
		n = len(c.Messages)
	}
	out := make([]WireMessage, n)
	for i := 0; i < n; i++ {
		out[i] = c.Messages[i].Wire()
	}
	return out
}

// prune drops the oldest messages beyond MaxMessages. Relative order of the
// survivors is unchanged.
func (c *Conversation) prune() {
	if over := len(c.Messages) - MaxMessages; over > 0 {
		c.Messages = append(c.Messages[:0:0], c.Messages[over:]...)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage_UniqueIDs(t *testing.T) {
	a := NewMessage(RoleUser, "hi")
	b := NewMessage(RoleUser, "hi")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestMessage_WithContentKeepsIdentity(t *testing.T) {
	orig := NewMessage(RoleAssistant, "")
	next := orig.WithContent("Hello")

	assert.Equal(t, orig.ID, next.ID)
	assert.Equal(t, orig.CreatedAt, next.CreatedAt)
	assert.Equal(t, "", orig.Content, "original value must not change")
	assert.Equal(t, "Hello", next.Content)
}

func TestMessage_Preview(t *testing.T) {
	m := NewMessage(RoleUser, "  first line here  \nsecond")
	assert.Equal(t, "first line here", m.Preview(0))
	assert.Equal(t, "first...", m.Preview(5))
}

func TestFromWire_SkipsUnstorableRoles(t *testing.T) {
	msgs := FromWire([]WireMessage{
		{Role: RoleSystem, Content: "prompt"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
		{Role: "tool", Content: "x"},
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "a", msgs[1].Content)
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range BuiltinCategories {
		assert.True(t, c.Valid(), c)
	}
	assert.True(t, Category("system-design_2").Valid())
	assert.False(t, Category("").Valid())
	assert.False(t, Category("Chat").Valid())
	assert.False(t, Category("../etc").Valid())
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_ReplaceLast(t *testing.T) {
	conv := NewConversation(CategoryChat)

	_, err := conv.ReplaceLast("x")
	require.ErrorIs(t, err, ErrEmptyConversation)

	conv.Append(NewMessage(RoleUser, "q"))
	placeholder := NewMessage(RoleAssistant, "")
	conv.Append(placeholder)

	got, err := conv.ReplaceLast("Hel")
	require.NoError(t, err)
	assert.Equal(t, placeholder.ID, got.ID)
	assert.Equal(t, 2, conv.Len())

	last, ok := conv.Last()
	require.True(t, ok)
	assert.Equal(t, "Hel", last.Content)
	assert.Equal(t, "q", conv.Messages[0].Content)
}

func TestConversation_CloneIsIndependent(t *testing.T) {
	conv := NewConversation(CategoryTodo)
	conv.Append(NewMessage(RoleUser, "a"))

	clone := conv.Clone()
	conv.Append(NewMessage(RoleAssistant, "b"))
	_, err := clone.ReplaceLast("changed")
	require.NoError(t, err)

	assert.Equal(t, 1, clone.Len())
	assert.Equal(t, "a", conv.Messages[0].Content)
}

func TestConversation_WireExcludesTail(t *testing.T) {
	conv := NewConversation(CategoryChat)
	conv.Append(NewMessage(RoleUser, "q"))
	conv.Append(NewMessage(RoleAssistant, ""))

	wire := conv.Wire(conv.Len() - 1)
	assert.Equal(t, []WireMessage{{Role: RoleUser, Content: "q"}}, wire)
	assert.Len(t, conv.Wire(-1), 2)
}

func TestConversation_PruneKeepsNewestInOrder(t *testing.T) {
	conv := NewConversation(CategoryChat)
	for i := 0; i < MaxMessages+5; i++ {
		conv.Append(NewMessage(RoleUser, string(rune('a'+i%26))))
	}

	require.Equal(t, MaxMessages, conv.Len())
	assert.Equal(t, string(rune('a'+5%26)), conv.Messages[0].Content)
	last, _ := conv.Last()
	assert.Equal(t, string(rune('a'+(MaxMessages+4)%26)), last.Content)
}

func TestConversation_PruneDropsOnlyTheOverflow(t *testing.T) {
	msgs := make([]Message, MaxMessages)
	for i := range msgs {
		msgs[i] = NewMessage(RoleAssistant, fmt.Sprint(i))
	}
	conv := NewConversation(CategoryChat)
	conv.Reset(msgs)
	require.Equal(t, MaxMessages, conv.Len())

	conv.Append(NewMessage(RoleUser, "q"))
	require.Equal(t, MaxMessages, conv.Len())
	assert.Equal(t, "1", conv.Messages[0].Content)

	conv.Append(NewMessage(RoleAssistant, ""))
	require.Equal(t, MaxMessages, conv.Len())
	assert.Equal(t, "2", conv.Messages[0].Content)

	conv.Reset(append(msgs, NewMessage(RoleUser, "extra")))
	require.Equal(t, MaxMessages, conv.Len())
	assert.Equal(t, "1", conv.Messages[0].Content)
	last, _ := conv.Last()
	assert.Equal(t, "extra", last.Content)
}

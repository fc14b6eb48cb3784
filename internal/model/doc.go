// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// Messages are immutable values. A Conversation is an ordered list of them
// for one category (chat, mental, resume, todo); insertion order is the only
// ordering and is never changed. The one message that changes over time, the
// in-flight assistant reply, is swapped wholesale with ReplaceLast.
//
// # Usage
//
//	conv := model.NewConversation(model.CategoryChat)
//	conv.Append(model.NewMessage(model.RoleUser, "Let's practice"))
//	conv.Append(model.NewMessage(model.RoleAssistant, ""))
//	conv.ReplaceLast("Tell me about yourself.")
package model

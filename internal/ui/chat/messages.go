// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/model"
)

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// flushMsg tells the model that the Bridge holds new updates.
type flushMsg struct{}

// LoadedMsg reports that a category's controller is ready.
type LoadedMsg struct {
	Category model.Category
	Update   conversation.Update
	Err      error
}

// TurnDoneMsg reports that SubmitTurn returned.
type TurnDoneMsg struct {
	Category model.Category
	Err      error
}

// ResetMsg reports the outcome of a new-chat request.
type ResetMsg struct {
	Category model.Category
	Err      error
}

// SubmitMsg submits text to the active category as if it were typed. The
// dictation watcher sends it.
type SubmitMsg struct {
	Text string
}

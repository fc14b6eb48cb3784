// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation drives chat turns for one category at a time.
//
// A Controller owns its conversation. SubmitTurn appends the user's message
// and an empty assistant placeholder, streams the backend reply through a
// stream.Accumulator, replaces the placeholder with every snapshot and
// publishes a read-only Update to its Renderer after each change. When the
// stream ends the finished message list goes to the Persister exactly once,
// whether the turn succeeded or failed.
//
// At most one turn runs per controller. A second SubmitTurn while one is in
// flight returns ErrTurnInFlight and leaves the conversation untouched.
//
// # Usage
//
//	ctrl := conversation.New(model.CategoryChat, backend,
//	    conversation.WithRenderer(view),
//	    conversation.WithPersister(store),
//	    conversation.WithHistory(store),
//	)
//	ctrl.Load(ctx)
//	err := ctrl.SubmitTurn(ctx, "Google, backend engineer")
package conversation

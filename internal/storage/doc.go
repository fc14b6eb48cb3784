// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations, one per (user, category).
//
// Saving is an upsert: the stored message list is replaced and updated_at
// refreshed. Three backends implement Store:
//
//   - SQLiteStore keeps every conversation in one SQLite database.
//   - FileStore keeps one JSON file per conversation, written atomically.
//   - RemoteStore talks to the portal's /api/users/conversation API.
//
// UserStore binds a Store to one user and is what the conversation
// controller uses to load history and record finished turns.
//
// # Usage
//
//	store, err := storage.Open(storage.Config{Driver: "sqlite", Path: dbPath})
//	us := storage.ForUser(store, "jesse")
//	_ = us.Persist(ctx, model.CategoryChat, msgs)
//	history, err := us.History(ctx, model.CategoryChat)
package storage

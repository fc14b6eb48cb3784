// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/mentorbot/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	category   TEXT NOT NULL,
	messages   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (user_id, category)
);
CREATE INDEX IF NOT EXISTS idx_conversations_user_updated
	ON conversations (user_id, updated_at DESC);
`

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps conversations in a SQLite database.
//
// The store is safe for concurrent use.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path must not be empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// This also keeps ":memory:" on a single shared database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save upserts the conversation for (user, category).
func (s *SQLiteStore) Save(ctx context.Context, user string, category model.Category, msgs []model.WireMessage) (*Record, error) {
	if err := validate(user, category, msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.WireMessage{}
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode messages: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (user_id, category, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, category)
		DO UPDATE SET messages = excluded.messages, updated_at = excluded.updated_at`,
		user, string(category), string(payload), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}
	return s.Load(ctx, user, category)
}

// Load returns the stored conversation.
func (s *SQLiteStore) Load(ctx context.Context, user string, category model.Category) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT messages, created_at, updated_at FROM conversations
		WHERE user_id = ? AND category = ?`, user, string(category))

	var payload, created, updated string
	if err := row.Scan(&payload, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return decodeRow(user, category, payload, created, updated)
}

// List returns the user's conversations, newest first.
func (s *SQLiteStore) List(ctx context.Context, user string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, messages, created_at, updated_at FROM conversations
		WHERE user_id = ? ORDER BY updated_at DESC, category`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var category, payload, created, updated string
		if err := rows.Scan(&category, &payload, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		rec, err := decodeRow(user, model.Category(category), payload, created, updated)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(rec))
	}
	return out, rows.Err()
}

// Delete removes the conversation for (user, category).
func (s *SQLiteStore) Delete(ctx context.Context, user string, category model.Category) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ? AND category = ?`, user, string(category))
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeRow(user string, category model.Category, payload, created, updated string) (*Record, error) {
	rec := &Record{User: user, Category: category}
	if err := json.Unmarshal([]byte(payload), &rec.Messages); err != nil {
		return nil, fmt.Errorf("corrupt messages for %s/%s: %w", user, category, err)
	}
	var err error
	if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("corrupt created_at for %s/%s: %w", user, category, err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("corrupt updated_at for %s/%s: %w", user, category, err)
	}
	return rec, nil
}

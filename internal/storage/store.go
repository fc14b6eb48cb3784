// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/mentorbot/internal/model"
)

// =============================================================================
// TYPES
// =============================================================================

// Record is one stored conversation.
type Record struct {
	User      string              `json:"user,omitempty"`
	Category  model.Category      `json:"category"`
	Messages  []model.WireMessage `json:"messages"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Summary is the listing form of a Record.
type Summary struct {
	Category     model.Category `json:"category"`
	MessageCount int            `json:"message_count"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Preview      string         `json:"preview"`
}

func summarize(r *Record) Summary {
	s := Summary{Category: r.Category, MessageCount: len(r.Messages), UpdatedAt: r.UpdatedAt}
	for _, m := range r.Messages {
		if m.Role == model.RoleUser {
			s.Preview = model.Message{Content: m.Content}.Preview(60)
			break
		}
	}
	return s
}

// Store persists conversations keyed by user and category.
type Store interface {
	// Save replaces the messages stored for (user, category), creating the
	// record if needed.
	Save(ctx context.Context, user string, category model.Category, msgs []model.WireMessage) (*Record, error)

	// Load returns ErrConversationNotFound when nothing is stored.
	Load(ctx context.Context, user string, category model.Category) (*Record, error)

	// List returns the user's conversations, most recently updated first.
	List(ctx context.Context, user string) ([]Summary, error)

	// Delete returns ErrConversationNotFound when nothing is stored.
	Delete(ctx context.Context, user string, category model.Category) error

	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError represents a storage error that callers may match with
// errors.Is against the sentinels above.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	return ok && e.Message == t.Message
}

// ValidationError reports a record that cannot be stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// validate checks the key and messages of a save.
func validate(user string, category model.Category, msgs []model.WireMessage) error {
	if strings.TrimSpace(user) == "" {
		return &ValidationError{Field: "user", Message: "must not be empty"}
	}
	if !category.Valid() {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("%q is not a valid category name", category)}
	}
	if len(msgs) > model.MaxMessages {
		return &ValidationError{Field: "messages", Message: fmt.Sprintf("at most %d messages", model.MaxMessages)}
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Message: fmt.Sprintf("unsupported role %q", m.Role)}
		}
	}
	return nil
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// =============================================================================
// FACTORY
// =============================================================================

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverRemote = "remote"
)

// Config selects and configures a Store.
type Config struct {
	Driver string
	// Path is the database file (sqlite) or directory (file).
	Path string
	// URL and Token are used by the remote driver.
	URL   string
	Token string
}

// Open builds the Store selected by cfg.Driver.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return OpenSQLite(cfg.Path)
	case DriverFile:
		return NewFileStore(cfg.Path)
	case DriverRemote:
		return NewRemoteStore(cfg.URL, cfg.Token), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// =============================================================================
// USER BINDING
// =============================================================================

// UserStore binds a Store to one user.
type UserStore struct {
	Store Store
	User  string
}

// ForUser returns a UserStore for user.
func ForUser(store Store, user string) *UserStore {
	return &UserStore{Store: store, User: user}
}

// Persist saves a finished conversation.
func (u *UserStore) Persist(ctx context.Context, category model.Category, msgs []model.WireMessage) error {
	_, err := u.Store.Save(ctx, u.User, category, msgs)
	return err
}

// History returns the stored messages, or nil without error when the
// category has no conversation yet.
func (u *UserStore) History(ctx context.Context, category model.Category) ([]model.WireMessage, error) {
	rec, err := u.Store.Load(ctx, u.User, category)
	if errors.Is(err, ErrConversationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Messages, nil
}

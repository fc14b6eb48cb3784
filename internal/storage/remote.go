// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/mentorbot/internal/model"
)

// RemoteStore persists conversations through the portal's user API:
//
//	GET  /api/users/conversation/{category}
//	POST /api/users/conversation   {category, messages}
//
// The portal identifies the user from the bearer token, so the user
// argument of each method is ignored.
type RemoteStore struct {
	BaseURL string
	Token   string
	client  *http.Client
}

// NewRemoteStore creates a store for the portal at baseURL.
func NewRemoteStore(baseURL, token string) *RemoteStore {
	return &RemoteStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// conversationPayload mirrors the portal's conversation schema.
type conversationPayload struct {
	Category  model.Category      `json:"category"`
	Messages  []model.WireMessage `json:"messages"`
	UpdatedAt time.Time           `json:"updated_at,omitempty"`
}

// Save posts the conversation; the portal upserts it.
func (s *RemoteStore) Save(ctx context.Context, user string, category model.Category, msgs []model.WireMessage) (*Record, error) {
	if !category.Valid() {
		return nil, &ValidationError{Field: "category", Message: fmt.Sprintf("%q is not a valid category name", category)}
	}
	if msgs == nil {
		msgs = []model.WireMessage{}
	}
	body, err := json.Marshal(conversationPayload{Category: category, Messages: msgs})
	if err != nil {
		return nil, err
	}

	var out conversationPayload
	if err := s.do(ctx, http.MethodPost, "/api/users/conversation", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return s.record(user, out), nil
}

// Load fetches the conversation; a 404 maps to ErrConversationNotFound.
func (s *RemoteStore) Load(ctx context.Context, user string, category model.Category) (*Record, error) {
	var out conversationPayload
	path := "/api/users/conversation/" + url.PathEscape(string(category))
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return s.record(user, out), nil
}

// List fetches every built-in category. The portal has no listing
// endpoint, so this costs one request per category.
func (s *RemoteStore) List(ctx context.Context, user string) ([]Summary, error) {
	var out []Summary
	for _, c := range model.BuiltinCategories {
		rec, err := s.Load(ctx, user, c)
		if errors.Is(err, ErrConversationNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(rec))
	}
	return out, nil
}

// Delete is not offered by the portal API.
func (s *RemoteStore) Delete(ctx context.Context, user string, category model.Category) error {
	return errors.New("the portal does not support deleting conversations")
}

// Close is a no-op.
func (s *RemoteStore) Close() error { return nil }

func (s *RemoteStore) record(user string, p conversationPayload) *Record {
	return &Record{User: user, Category: p.Category, Messages: p.Messages, UpdatedAt: p.UpdatedAt}
}

func (s *RemoteStore) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("portal request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrConversationNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("portal returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode portal response: %w", err)
	}
	return nil
}

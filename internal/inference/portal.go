// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"context"

	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/stream"
)

// ChatPath is the portal's streaming chat endpoint.
const ChatPath = "/api/chat"

// ChatPayload is the body of POST /api/chat. System is optional; portals
// that keep their own prompts ignore it.
type ChatPayload struct {
	Messages []model.WireMessage `json:"messages"`
	System   string              `json:"system,omitempty"`
	Category model.Category      `json:"category,omitempty"`
}

// PortalClient streams replies from the assistant portal, which answers
// POST /api/chat with the reply as raw text chunks.
//
// The client is safe for concurrent use.
type PortalClient struct {
	httpClient
}

// NewPortalClient creates a portal client; zero fields of cfg take defaults.
func NewPortalClient(cfg Config) *PortalClient {
	return &PortalClient{httpClient: newHTTPClient(cfg)}
}

// Stream posts the conversation and returns the body as a chunk source.
func (c *PortalClient) Stream(ctx context.Context, req Request) (stream.ChunkSource, error) {
	resp, err := c.postJSON(ctx, ChatPath, ChatPayload{
		Messages: req.Messages,
		System:   req.SystemPrompt,
		Category: req.Category,
	})
	if err != nil {
		return nil, err
	}
	return c.source(resp)
}

// Check reports whether the portal is reachable.
func (c *PortalClient) Check(ctx context.Context) error {
	return c.check(ctx, "/")
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/stream"
)

// =============================================================================
// OLLAMA WIRE TYPES
// =============================================================================

type ollamaRequest struct {
	Model    string              `json:"model"`
	Messages []model.WireMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

// ollamaChunk is one NDJSON line of a streaming /api/chat response.
type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// =============================================================================
// CLIENT
// =============================================================================

// OllamaClient streams replies from a local Ollama server. The system prompt
// is sent as a leading system message.
//
// The client is safe for concurrent use.
type OllamaClient struct {
	httpClient
}

// NewOllamaClient creates an Ollama client; zero fields of cfg take
// defaults. The default base URL is http://127.0.0.1:11434.
func NewOllamaClient(cfg Config) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:11434"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	return &OllamaClient{httpClient: newHTTPClient(cfg)}
}

// Stream starts a chat and returns the reply text as chunks. A goroutine
// decodes the NDJSON lines; closing the source stops it and releases the
// connection.
func (c *OllamaClient) Stream(ctx context.Context, req Request) (stream.ChunkSource, error) {
	msgs := make([]model.WireMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		msgs = append(msgs, model.WireMessage{Role: model.RoleSystem, Content: req.SystemPrompt})
	}
	msgs = append(msgs, req.Messages...)

	resp, err := c.postJSON(ctx, "/api/chat", ollamaRequest{Model: c.cfg.Model, Messages: msgs, Stream: true})
	if err != nil {
		if ce := (*ClientError)(nil); errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound {
			ce.Message = "model " + c.cfg.Model + " not found"
		}
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			resp.Body.Close()
		})
	}

	ch := make(chan stream.Chunk)
	go func() {
		defer close(ch)
		defer stop()
		decodeNDJSON(streamCtx, resp.Body, ch)
	}()

	return stream.FromChannel(ch, stop), nil
}

// Check reports whether Ollama is reachable.
func (c *OllamaClient) Check(ctx context.Context) error {
	return c.check(ctx, "/")
}

// decodeNDJSON forwards message content until the done line. A body that
// ends without one is a truncated reply.
func decodeNDJSON(ctx context.Context, body io.Reader, ch chan<- stream.Chunk) {
	send := func(c stream.Chunk) bool {
		select {
		case ch <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	reader := bufio.NewReader(body)
	for {
		line, readErr := reader.ReadBytes('\n')
		if trimmed := strings.TrimSpace(string(line)); trimmed != "" {
			var chunk ollamaChunk
			if err := json.Unmarshal([]byte(trimmed), &chunk); err != nil {
				send(stream.Chunk{Err: &ClientError{Type: ErrTypeDecode, Message: "malformed stream line", Cause: err}})
				return
			}
			if chunk.Error != "" {
				send(stream.Chunk{Err: &ClientError{Type: ErrTypeBackend, Message: chunk.Error}})
				return
			}
			if chunk.Message.Content != "" {
				if !send(stream.Chunk{Data: []byte(chunk.Message.Content)}) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				readErr = io.ErrUnexpectedEOF
			}
			if ctx.Err() == nil {
				send(stream.Chunk{Err: &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: readErr}})
			}
			return
		}
	}
}

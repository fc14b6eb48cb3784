// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/stream"
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Request is one streaming exchange: the conversation so far plus the
// category's system prompt.
type Request struct {
	Category     model.Category
	SystemPrompt string
	Messages     []model.WireMessage
}

// Backend opens a streaming reply for a conversation. The returned source
// ends with io.EOF on success; the caller must Close it.
type Backend interface {
	Stream(ctx context.Context, req Request) (stream.ChunkSource, error)
}

// Kinds of backend accepted by New.
const (
	KindPortal = "portal"
	KindOllama = "ollama"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds options shared by all clients.
type Config struct {
	// Kind selects the client built by New (portal or ollama).
	Kind string

	// BaseURL of the backend, without a trailing slash.
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Model is the Ollama model name. Ignored by the portal.
	Model string

	// Timeout bounds connecting and waiting for response headers. Reading
	// the body is bounded only by the caller's context.
	Timeout time.Duration

	// RequestsPerMinute limits how often a stream may be opened. Zero means
	// unlimited.
	RequestsPerMinute int

	// Charset overrides the response charset. Empty means use the
	// Content-Type header, falling back to UTF-8.
	Charset string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Kind:              KindPortal,
		BaseURL:           "http://127.0.0.1:8000",
		Model:             "llama3.1:8b",
		Timeout:           30 * time.Second,
		RequestsPerMinute: 30,
	}
}

// New builds the client selected by cfg.Kind.
func New(cfg Config) (Backend, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindPortal:
		return NewPortalClient(cfg), nil
	case KindOllama:
		return NewOllamaClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// =============================================================================
// SHARED HTTP PLUMBING
// =============================================================================

// httpClient holds the transport, limiter and auth shared by both clients.
type httpClient struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(cfg Config) httpClient {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	// No overall Client.Timeout: it would cut long replies off mid-stream.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	c := httpClient{
		cfg:  cfg,
		http: &http.Client{Transport: transport},
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// postJSON sends body to path and returns the response once headers arrive.
// Non-2xx statuses are turned into a ClientError and the body is closed.
func (c httpClient) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, classify(ctx, ctx.Err())
			}
			// The next slot lies beyond the context deadline.
			return nil, &ClientError{Type: ErrTypeTimeout, Message: "rate limited", Cause: err}
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeDecode, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drainAndClose(resp.Body)
		return nil, statusError(resp)
	}
	return resp, nil
}

// check issues a GET to path and reports whether the backend answers.
func (c httpClient) check(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return classify(ctx, err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode >= 500 {
		return statusError(resp)
	}
	return nil
}

// source wraps a streaming body, tagging it with the response charset.
func (c httpClient) source(resp *http.Response) (stream.ChunkSource, error) {
	enc, err := stream.EncodingForContentType(resp.Header.Get("Content-Type"))
	if c.cfg.Charset != "" {
		enc, err = stream.EncodingByName(c.cfg.Charset)
	}
	if err != nil {
		resp.Body.Close()
		return nil, &ClientError{Type: ErrTypeDecode, Message: "unsupported response charset", Cause: err}
	}
	return stream.WithSourceEncoding(stream.FromReader(resp.Body, 0), enc), nil
}

func statusError(resp *http.Response) *ClientError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(snippet))

	// FastAPI and Ollama both report errors as JSON objects.
	var detail struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(snippet, &detail) == nil {
		if detail.Detail != "" {
			msg = detail.Detail
		} else if detail.Error != "" {
			msg = detail.Error
		}
	}
	if msg == "" {
		msg = resp.Status
	}

	typ := ErrTypeStatus
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		typ = ErrTypeUnauthorized
	}
	return &ClientError{Type: typ, Message: msg, StatusCode: resp.StatusCode}
}

func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, 64<<10))
	r.Close()
}

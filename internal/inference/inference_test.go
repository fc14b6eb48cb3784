// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/stream"
)

func testRequest() Request {
	return Request{
		Category:     model.CategoryChat,
		SystemPrompt: "You are an interview coach.",
		Messages:     []model.WireMessage{{Role: model.RoleUser, Content: "Hi"}},
	}
}

// =============================================================================
// PORTAL CLIENT TESTS
// =============================================================================

func TestPortalClient_StreamsRawText(t *testing.T) {
	var got ChatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ChatPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Tell me ", "about ", "yourself."} {
			io.WriteString(w, part)
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	c := NewPortalClient(Config{BaseURL: srv.URL + "/", Token: "secret"})
	src, err := c.Stream(context.Background(), testRequest())
	require.NoError(t, err)

	text, err := stream.Collect(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "Tell me about yourself.", text)
	assert.Equal(t, "You are an interview coach.", got.System)
	assert.Equal(t, model.CategoryChat, got.Category)
	assert.Equal(t, []model.WireMessage{{Role: model.RoleUser, Content: "Hi"}}, got.Messages)
}

func TestPortalClient_ResponseCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		w.Write([]byte{'c', 'a', 'f', 0xE9})
	}))
	defer srv.Close()

	src, err := NewPortalClient(Config{BaseURL: srv.URL}).Stream(context.Background(), testRequest())
	require.NoError(t, err)
	text, err := stream.Collect(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestPortalClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    error
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Not authenticated"}`, ErrUnauthorized, "Not authenticated"},
		{"server error", http.StatusInternalServerError, `{"detail":"interview_prompt.txt not found"}`, nil, "interview_prompt.txt not found"},
		{"plain body", http.StatusBadGateway, "upstream down", nil, "upstream down"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := NewPortalClient(Config{BaseURL: srv.URL}).Stream(context.Background(), testRequest())
			require.Error(t, err)

			var ce *ClientError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.status, ce.StatusCode)
			assert.Equal(t, tc.message, ce.Message)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestPortalClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewPortalClient(Config{BaseURL: url}).Stream(context.Background(), testRequest())
	assert.True(t, IsNotRunning(err), "got %v", err)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestPortalClient_HeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewPortalClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}).Stream(context.Background(), testRequest())
	assert.True(t, IsTimeout(err), "got %v", err)
}

func TestPortalClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewPortalClient(Config{BaseURL: srv.URL, RequestsPerMinute: 1})
	src, err := c.Stream(context.Background(), testRequest())
	require.NoError(t, err)
	src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.Stream(ctx, testRequest())
	assert.ErrorIs(t, err, ErrTimeout)
}

// =============================================================================
// OLLAMA CLIENT TESTS
// =============================================================================

func ndjsonServer(t *testing.T, lines []string, seen *ollamaRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			io.WriteString(w, l+"\n")
			w.(http.Flusher).Flush()
		}
	}))
}

func TestOllamaClient_Stream(t *testing.T) {
	var seen ollamaRequest
	srv := ndjsonServer(t, []string{
		`{"message":{"role":"assistant","content":"**Arrays:**"},"done":false}`,
		``,
		`{"message":{"role":"assistant","content":"\n* Two Sum"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	}, &seen)
	defer srv.Close()

	c := NewOllamaClient(Config{BaseURL: srv.URL, Model: "qwen2.5:7b"})
	src, err := c.Stream(context.Background(), testRequest())
	require.NoError(t, err)

	text, err := stream.Collect(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "**Arrays:**\n* Two Sum", text)

	assert.Equal(t, "qwen2.5:7b", seen.Model)
	assert.True(t, seen.Stream)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, model.RoleSystem, seen.Messages[0].Role)
	assert.Equal(t, "Hi", seen.Messages[1].Content)
}

func TestOllamaClient_Failures(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		typ   ErrorType
	}{
		{"truncated", []string{`{"message":{"content":"Hel"},"done":false}`}, ErrTypeConnection},
		{"error line", []string{`{"message":{"content":"Hel"}}`, `{"error":"model crashed"}`}, ErrTypeBackend},
		{"garbage", []string{`{"message":{"content":"Hel"}}`, `not json`}, ErrTypeDecode},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := ndjsonServer(t, tc.lines, nil)
			defer srv.Close()

			src, err := NewOllamaClient(Config{BaseURL: srv.URL}).Stream(context.Background(), testRequest())
			require.NoError(t, err)

			text, err := stream.Collect(context.Background(), src)
			assert.Equal(t, "Hel", text)

			var ce *ClientError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.typ, ce.Type)
		})
	}
}

func TestOllamaClient_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"model 'nope' not found"}`)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(Config{BaseURL: srv.URL, Model: "nope"}).Stream(context.Background(), testRequest())
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "model nope not found", ce.Message)
}

func TestOllamaClient_CloseStopsProducer(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"content":"a"}}`+"\n")
		w.(http.Flusher).Flush()
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	src, err := NewOllamaClient(Config{BaseURL: srv.URL}).Stream(context.Background(), testRequest())
	require.NoError(t, err)

	chunk, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", string(chunk))

	require.NoError(t, src.Close())
	// The producer exits and closes the channel, so Next ends instead of hanging.
	done := make(chan error, 1)
	go func() {
		_, err := src.Next(context.Background())
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("Next blocked after Close")
	}
}

func TestNew(t *testing.T) {
	b, err := New(Config{Kind: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, b)

	b, err = New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &PortalClient{}, b)

	_, err = New(Config{Kind: "gemini"})
	assert.Error(t, err)
}

func TestClientError_Is(t *testing.T) {
	err := &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: context.DeadlineExceeded}
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(ErrTimeout, err), "only sentinels match by type")
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/format"
	"github.com/jeranaias/mentorbot/internal/inference"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/storage"
)

// ============================================================================
// FORMAT
// ============================================================================

// FormatRequest is the body of POST /api/format.
type FormatRequest struct {
	Text string `json:"text"`
}

// FormatResponse carries the segmented blocks.
type FormatResponse struct {
	Blocks []format.Block `json:"blocks"`
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req FormatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	blocks := format.Segment(req.Text)
	if blocks == nil {
		blocks = []format.Block{}
	}
	writeJSON(w, http.StatusOK, FormatResponse{Blocks: blocks})
}

// ============================================================================
// CONVERSATIONS
// ============================================================================

// ConversationRequest is the body of POST /api/users/conversation.
type ConversationRequest struct {
	Category model.Category      `json:"category"`
	Messages []model.WireMessage `json:"messages"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	list, err := s.opts.Store.List(r.Context(), s.user(r))
	if err != nil {
		s.storageError(w, r, err)
		return
	}
	if list == nil {
		list = []storage.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	cat, ok := category(w, r)
	if !ok || !s.requireStore(w) {
		return
	}
	rec, err := s.opts.Store.Load(r.Context(), s.user(r), cat)
	if err != nil {
		s.storageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSaveConversation(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req ConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user := s.user(r)
	if req.Messages == nil {
		req.Messages = []model.WireMessage{}
	}
	var rec *storage.Record
	err := s.replace(r.Context(), user, req.Category, func(ctx context.Context) error {
		var err error
		rec, err = s.opts.Store.Save(ctx, user, req.Category, req.Messages)
		return err
	})
	if err != nil {
		s.storageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	cat, ok := category(w, r)
	if !ok || !s.requireStore(w) {
		return
	}
	user := s.user(r)
	err := s.replace(r.Context(), user, cat, func(ctx context.Context) error {
		return s.opts.Store.Delete(ctx, user, cat)
	})
	if err != nil {
		s.storageError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.opts.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return false
	}
	return true
}

// storageError maps store errors to statuses. Internal details are logged,
// never returned.
func (s *Server) storageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conversation.ErrTurnInFlight):
		writeError(w, http.StatusConflict, "a reply is already in progress")
	case errors.Is(err, conversation.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
	case errors.Is(err, storage.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case storage.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("Storage failure", "path", r.URL.Path, "request_id", RequestID(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
	}
}

// ============================================================================
// TURNS
// ============================================================================

// TurnRequest is the body of POST /api/conversations/{category}/turns.
type TurnRequest struct {
	Text string `json:"text"`
}

// TurnEvent is one NDJSON line of a turn stream: the in-flight reply as of
// one controller update.
type TurnEvent struct {
	Phase     conversation.Phase `json:"phase"`
	MessageID string             `json:"message_id"`
	Content   string             `json:"content"`
	Blocks    []format.Block     `json:"blocks"`
}

// ndjsonWriter streams TurnEvents, writing headers on the first event.
type ndjsonWriter struct {
	w       http.ResponseWriter
	enc     *json.Encoder
	started bool
	err     error
}

func (n *ndjsonWriter) Render(u conversation.Update) {
	last, ok := u.Last()
	if !ok || n.err != nil {
		return
	}
	if !n.started {
		n.w.Header().Set("Content-Type", "application/x-ndjson")
		n.w.Header().Set("Cache-Control", "no-cache")
		n.w.Header().Set("X-Accel-Buffering", "no")
		n.w.WriteHeader(http.StatusOK)
		n.started = true
	}
	blocks := last.Blocks
	if blocks == nil {
		blocks = []format.Block{}
	}
	n.err = n.enc.Encode(TurnEvent{
		Phase:     u.Phase,
		MessageID: last.Message.ID,
		Content:   last.Message.Content,
		Blocks:    blocks,
	})
	if f, ok := n.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	cat, ok := category(w, r)
	if !ok {
		return
	}
	var req TurnRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctrl, err := s.manager(s.user(r)).Get(r.Context(), cat)
	if err != nil {
		s.logger.Error("Cannot open conversation", "category", cat, "err", err)
		writeError(w, http.StatusServiceUnavailable, "conversation unavailable")
		return
	}

	// A client that goes away only stops the event stream. The reply is
	// still read to the end and saved.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), maxTurnDuration)
	defer cancel()

	out := &ndjsonWriter{w: w, enc: json.NewEncoder(w)}
	err = ctrl.SubmitTurn(ctx, req.Text, conversation.WithObserver(out))
	switch {
	case errors.Is(err, conversation.ErrTurnInFlight):
		writeError(w, http.StatusConflict, "a reply is already in progress")
	case errors.Is(err, conversation.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "conversation closed")
	case err != nil:
		s.logger.Error("Turn failed", "category", cat, "err", err)
		if !out.started {
			writeError(w, http.StatusInternalServerError, "turn failed")
		}
	case !out.started:
		// Blank text: nothing happened.
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================================
// CHAT PROXY
// ============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest = inference.ChatPayload

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.opts.Backend == nil {
		writeError(w, http.StatusServiceUnavailable, "no backend configured")
		return
	}
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}
	for _, m := range req.Messages {
		if !m.Role.Valid() {
			writeError(w, http.StatusBadRequest, "invalid message role")
			return
		}
	}

	ctx := r.Context()
	src, err := s.opts.Backend.Stream(ctx, inference.Request{
		Category:     req.Category,
		SystemPrompt: req.System,
		Messages:     req.Messages,
	})
	if err != nil {
		s.logger.Error("Chat proxy failed", "request_id", RequestID(ctx), "err", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, ChatErrorMessage)
		return
	}
	defer src.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for {
		chunk, err := src.Next(ctx)
		if len(chunk) > 0 {
			if _, werr := w.Write(chunk); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			// Headers are gone; the truncated body is the signal.
			s.logger.Warn("Chat proxy stream ended early", "request_id", RequestID(ctx), "err", err)
			return
		}
	}
}

// ============================================================================
// HEALTH
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend string `json:"backend"`
	Storage string `json:"storage"`
}

// checker is implemented by backends that can probe their server.
type checker interface {
	Check(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := HealthResponse{Status: "ok", Version: Version, Backend: "not_configured", Storage: "not_configured"}

	if s.opts.Backend != nil {
		h.Backend = "configured"
		if c, ok := s.opts.Backend.(checker); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := c.Check(ctx); err != nil {
				h.Backend = "unavailable"
				h.Status = "degraded"
			} else {
				h.Backend = "ok"
			}
		}
	}
	if s.opts.Store != nil {
		h.Storage = "ok"
	}
	writeJSON(w, http.StatusOK, h)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/inference"
	"github.com/jeranaias/mentorbot/internal/logging"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is used when Options.Addr is empty.
	DefaultAddr = "127.0.0.1:8080"

	// UserHeader names the acting user.
	UserHeader = "X-MentorBot-User"

	// MaxRequestBodySize bounds JSON request bodies (1MB).
	MaxRequestBodySize = 1 << 20

	// ChatErrorMessage is sent when the chat proxy cannot reach the backend.
	ChatErrorMessage = "Sorry, an internal error occurred while processing the chat."

	// Version is reported by /health.
	Version = "0.1.0"

	shutdownTimeout = 10 * time.Second

	// maxTurnDuration bounds a turn whose client has disconnected.
	maxTurnDuration = 10 * time.Minute
)

// ============================================================================
// SERVER
// ============================================================================

// ControllerFactory builds the controller of one user's category. The
// server adds no renderer; each turn request observes its own updates.
type ControllerFactory func(user string, category model.Category) (*conversation.Controller, error)

// Options configures a Server.
type Options struct {
	Addr string

	Store       storage.Store
	Backend     inference.Backend
	Controllers ControllerFactory

	// DefaultUser acts for requests without a UserHeader.
	DefaultUser string

	CORSOrigins []string
	// Token, when set, is required as a bearer token.
	Token             string
	RequestsPerMinute int

	Logger *log.Logger
}

// Server serves the conversation API.
type Server struct {
	opts    Options
	logger  *log.Logger
	mux     *http.ServeMux
	handler http.Handler

	mu       sync.Mutex
	managers map[string]*conversation.Manager
	http     *http.Server
}

// New creates a Server. Nothing listens until ListenAndServe.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.DefaultUser == "" {
		opts.DefaultUser = "local"
	}
	logger := logging.OrDiscard(opts.Logger)

	s := &Server{
		opts:     opts,
		logger:   logger,
		mux:      http.NewServeMux(),
		managers: make(map[string]*conversation.Manager),
	}
	s.setupRoutes()
	s.handler = Chain(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(DefaultCORSConfig(opts.CORSOrigins...)),
		AuthMiddleware(opts.Token, logger),
		RateLimitMiddleware(NewRateLimiter(opts.RequestsPerMinute), logger),
	)(s.mux)
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /api/format", s.handleFormat)

	s.mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	s.mux.HandleFunc("GET /api/users/conversation/{category}", s.handleGetConversation)
	s.mux.HandleFunc("POST /api/users/conversation", s.handleSaveConversation)
	s.mux.HandleFunc("DELETE /api/conversations/{category}", s.handleDeleteConversation)
	s.mux.HandleFunc("POST /api/conversations/{category}/turns", s.handleTurn)

	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.opts.Addr
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: turn streams last as long as the reply.
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", ln.Addr().String(), "version", Version)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting requests, then waits for running turns to
// persist.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	managers := make([]*conversation.Manager, 0, len(s.managers))
	for _, m := range s.managers {
		managers = append(managers, m)
	}
	s.mu.Unlock()

	s.logger.Info("Server shutting down")
	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range managers {
		if err := m.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// manager returns the controllers of user, creating the set on first use.
func (s *Server) manager(user string) *conversation.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.managers[user]
	if !ok {
		factory := s.opts.Controllers
		m = conversation.NewManager(func(c model.Category) (*conversation.Controller, error) {
			if factory == nil {
				return nil, errors.New("turns are not enabled on this server")
			}
			return factory(user, c)
		})
		s.managers[user] = m
	}
	return m
}

// replace runs fn, a change to the stored conversation of category, while
// no turn of user can run on it. See conversation.Manager.Replace.
func (s *Server) replace(ctx context.Context, user string, category model.Category, fn func(context.Context) error) error {
	return s.manager(user).Replace(ctx, category, fn)
}

// user returns the acting user of r.
func (s *Server) user(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get(UserHeader)); u != "" {
		return u
	}
	return s.opts.DefaultUser
}

// ============================================================================
// HELPERS
// ============================================================================

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes an error.
type ErrorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Message: message, Code: status}})
}

// decodeJSON reads a size-limited JSON body into v and writes the error
// reply itself when that fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// category parses and validates the {category} path value.
func category(w http.ResponseWriter, r *http.Request) (model.Category, bool) {
	c := model.Category(r.PathValue("category"))
	if !c.Valid() {
		writeError(w, http.StatusBadRequest, "invalid category")
		return "", false
	}
	return c, true
}

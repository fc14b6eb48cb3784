// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/mentorbot/internal/format"
	"github.com/jeranaias/mentorbot/internal/inference"
	"github.com/jeranaias/mentorbot/internal/logging"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/stream"
)

// Errors returned by SubmitTurn, Load and Reset. Stream failures are never
// returned; they end the turn with the failure message instead.
var (
	ErrTurnInFlight = errors.New("a turn is already in flight")
	ErrClosed       = errors.New("conversation closed")
)

// Default user-visible texts.
const (
	DefaultFailureMessage   = "Sorry, an error occurred."
	DefaultLoadErrorMessage = "Could not load history. Let's start a new chat."
	DefaultPersistTimeout   = 10 * time.Second
)

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Controller.
type Option func(*Controller)

// WithRenderer sets the render target.
func WithRenderer(r Renderer) Option {
	return func(c *Controller) { c.renderer = r }
}

// WithPersister sets where finished turns are saved.
func WithPersister(p Persister) Option {
	return func(c *Controller) { c.persister = p }
}

// WithHistory sets where Load reads stored messages from.
func WithHistory(h HistoryLoader) Option {
	return func(c *Controller) { c.history = h }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithGreeting sets the assistant message shown when there is no history.
func WithGreeting(text string) Option {
	return func(c *Controller) { c.greeting = text }
}

// WithFailureMessage sets the text that replaces a failed reply.
func WithFailureMessage(text string) Option {
	return func(c *Controller) { c.failureMessage = text }
}

// WithLoadErrorMessage sets the assistant message shown when history could
// not be read.
func WithLoadErrorMessage(text string) Option {
	return func(c *Controller) { c.loadErrorMessage = text }
}

// WithSystemPrompt sets the prompt sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(c *Controller) { c.systemPrompt = prompt }
}

// WithPersistTimeout bounds each Persist call.
func WithPersistTimeout(d time.Duration) Option {
	return func(c *Controller) { c.persistTimeout = d }
}

// TurnOption configures a single SubmitTurn call.
type TurnOption func(*turnConfig)

type turnConfig struct {
	observer Renderer
}

// WithObserver also sends this turn's updates to r, after the controller's
// own render target. Updates of other turns never reach it.
func WithObserver(r Renderer) TurnOption {
	return func(t *turnConfig) { t.observer = r }
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the conversation of one category and runs its turns.
// It is safe for concurrent use.
type Controller struct {
	category model.Category
	backend  inference.Backend

	renderer         Renderer
	persister        Persister
	history          HistoryLoader
	logger           *log.Logger
	greeting         string
	failureMessage   string
	loadErrorMessage string
	systemPrompt     string
	persistTimeout   time.Duration

	mu     sync.Mutex
	conv   *model.Conversation
	blocks map[string][]format.Block // finalized messages by ID
	busy   bool
	closed bool
	last   Update
	turns  sync.WaitGroup

	persistMu sync.Mutex
}

// New creates a controller for category with an empty conversation.
func New(category model.Category, backend inference.Backend, opts ...Option) *Controller {
	c := &Controller{
		category:         category,
		backend:          backend,
		failureMessage:   DefaultFailureMessage,
		loadErrorMessage: DefaultLoadErrorMessage,
		persistTimeout:   DefaultPersistTimeout,
		conv:             model.NewConversation(category),
		blocks:           make(map[string][]format.Block),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger).With("category", string(category))
	c.last = Update{Category: category, Phase: PhaseLoaded}
	return c
}

// Category returns the category this controller serves.
func (c *Controller) Category() model.Category {
	return c.category
}

// Current returns the most recently published Update.
func (c *Controller) Current() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Conversation returns a copy of the conversation.
func (c *Controller) Conversation() *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Clone()
}

// Busy reports whether a turn or a load is running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// =============================================================================
// TURNS
// =============================================================================

// SubmitTurn runs one exchange and blocks until it ends. Blank text is
// ignored. While another turn or a load is running it returns
// ErrTurnInFlight without changing anything, and after Close it returns
// ErrClosed. A failing stream is not an error: the reply becomes the
// failure message and the turn is persisted like any other.
func (c *Controller) SubmitTurn(ctx context.Context, text string, opts ...TurnOption) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var tc turnConfig
	for _, opt := range opts {
		opt(&tc)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	c.busy = true
	c.turns.Add(1)
	defer c.turns.Done()

	c.conv.Append(model.NewMessage(model.RoleUser, text))
	c.conv.Append(model.NewMessage(model.RoleAssistant, ""))
	// Everything except the placeholder.
	history := c.conv.Wire(c.conv.Len() - 1)
	pending := c.publishLocked(PhasePending, true)
	c.mu.Unlock()

	c.emit(pending, tc.observer)
	c.logger.Debug("turn started", "messages", len(history))

	final, phase, stats := c.stream(ctx, history, tc.observer)

	c.mu.Lock()
	var done Update
	attached := !c.closed
	if attached {
		// The placeholder is still the last message: nothing else writes
		// while busy is set.
		msg, err := c.conv.ReplaceLast(final)
		if err == nil {
			c.blocks[msg.ID] = segmentFor(msg)
		}
		done = c.publishLocked(phase, false)
	}
	c.mu.Unlock()

	if attached {
		c.emit(done, tc.observer)
	}

	// Persists run in turn order even though the next turn may start as soon
	// as busy is cleared.
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()

	c.logger.Debug("turn finished",
		"phase", phase,
		"ttfc", stats.TTFC,
		"chunks", stats.Chunks,
		"bytes", stats.Bytes,
		"duration", stats.Duration(),
		"attached", attached,
	)

	msgs := append(history, model.WireMessage{Role: model.RoleAssistant, Content: final})
	c.persist(ctx, msgs)
	return nil
}

// stream reads the reply and publishes each snapshot while attached. It
// returns the final content, the terminal phase and the stream statistics.
func (c *Controller) stream(ctx context.Context, history []model.WireMessage, observer Renderer) (string, Phase, stream.Stats) {
	src, err := c.backend.Stream(ctx, inference.Request{
		Category:     c.category,
		SystemPrompt: c.systemPrompt,
		Messages:     history,
	})
	if err != nil {
		c.logger.Warn("stream open failed", "err", err)
		return c.failureMessage, PhaseFailed, stream.Stats{}
	}

	acc := stream.NewAccumulator()
	for snap := range acc.Open(ctx, src) {
		c.mu.Lock()
		if c.closed {
			// Detached: keep draining so the turn can still be persisted,
			// but never touch the conversation again.
			c.mu.Unlock()
			continue
		}
		if _, err := c.conv.ReplaceLast(snap.Text); err != nil {
			c.mu.Unlock()
			continue
		}
		upd := c.publishLocked(PhaseStreaming, true)
		c.mu.Unlock()
		c.emit(upd, observer)
	}

	if err := acc.Err(); err != nil {
		var chErr *stream.ChannelError
		if errors.As(err, &chErr) {
			c.logger.Warn("stream failed", "err", chErr.Cause, "partial_bytes", len(chErr.Partial), "chunks", chErr.Chunks)
		} else {
			c.logger.Warn("stream failed", "err", err)
		}
		return c.failureMessage, PhaseFailed, acc.Stats()
	}
	return acc.Partial(), PhaseComplete, acc.Stats()
}

func (c *Controller) persist(ctx context.Context, msgs []model.WireMessage) {
	if c.persister == nil {
		return
	}
	// The turn's own context may already be canceled; the record of a failed
	// turn still has to be written.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.persistTimeout)
	defer cancel()
	if err := c.persister.Persist(pctx, c.category, msgs); err != nil {
		c.logger.Error("persist failed", "err", err, "messages", len(msgs))
		return
	}
	c.logger.Debug("persisted", "messages", len(msgs))
}

// =============================================================================
// HISTORY
// =============================================================================

// Load replaces the conversation with stored history. When nothing is
// stored the greeting is shown, and when history cannot be read the load
// error message is. Neither case is returned as an error; only
// ErrTurnInFlight and ErrClosed are.
func (c *Controller) Load(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}

	var msgs []model.Message
	var stored []model.WireMessage
	var err error
	if c.history != nil {
		stored, err = c.history.History(ctx, c.category)
	}
	if err != nil {
		c.logger.Warn("history load failed", "err", err)
		msgs = c.single(c.loadErrorMessage)
	} else if msgs = model.FromWire(stored); len(msgs) == 0 {
		msgs = c.single(c.greeting)
	}
	c.logger.Debug("history loaded", "messages", len(msgs), "stored", len(stored))

	c.replace(msgs)
	return nil
}

// Reset starts a new chat showing only the greeting. Nothing is persisted
// until the next turn.
func (c *Controller) Reset() error {
	if err := c.acquire(); err != nil {
		return err
	}
	c.replace(c.single(c.greeting))
	return nil
}

func (c *Controller) single(text string) []model.Message {
	if text == "" {
		return nil
	}
	return []model.Message{model.NewMessage(model.RoleAssistant, text)}
}

// acquire marks the controller busy for a non-turn mutation.
func (c *Controller) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.busy {
		return ErrTurnInFlight
	}
	c.busy = true
	return nil
}

// replace swaps the conversation, publishes PhaseLoaded and releases busy.
func (c *Controller) replace(msgs []model.Message) {
	c.mu.Lock()
	var upd Update
	attached := !c.closed
	if attached {
		c.conv.Reset(msgs)
		c.blocks = make(map[string][]format.Block, len(msgs))
		upd = c.publishLocked(PhaseLoaded, false)
	}
	c.busy = false
	c.mu.Unlock()

	if attached {
		c.emit(upd, nil)
	}
}

// =============================================================================
// SHUTDOWN
// =============================================================================

// Close detaches the controller. A running turn stops publishing, keeps
// draining its stream and is still persisted. Close does not wait for it;
// use Wait for that.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Retire runs fn once no turn is running or persisting, then closes the
// controller. No turn can start while fn runs. When a turn or load is
// running it returns ErrTurnInFlight and leaves the controller open.
func (c *Controller) Retire(ctx context.Context, fn func(context.Context) error) error {
	if err := c.acquire(); err != nil {
		return err
	}
	// A finished turn may still be saving.
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	err := fn(ctx)

	c.mu.Lock()
	c.closed = true
	c.busy = false
	c.mu.Unlock()
	return err
}

// Wait blocks until no turn is running or ctx is done. Call it after Close
// so no new turn can start meanwhile.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.turns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// PUBLISHING
// =============================================================================

// publishLocked builds an Update of the current conversation. When
// inFlight is set the last message is segmented fresh; every other
// message comes from the block cache. c.mu must be held.
func (c *Controller) publishLocked(phase Phase, inFlight bool) Update {
	n := len(c.conv.Messages)
	entries := make([]Entry, n)
	for i, msg := range c.conv.Messages {
		entries[i] = Entry{Message: msg}
		if msg.Role == model.RoleUser {
			continue
		}
		if inFlight && i == n-1 {
			entries[i].Blocks = format.Segment(msg.Content)
			continue
		}
		blocks, ok := c.blocks[msg.ID]
		if !ok {
			blocks = segmentFor(msg)
			c.blocks[msg.ID] = blocks
		}
		entries[i].Blocks = blocks
	}
	c.pruneCacheLocked()

	c.last = Update{Category: c.category, Phase: phase, Entries: entries}
	return c.last
}

// pruneCacheLocked drops cached blocks of messages no longer present.
func (c *Controller) pruneCacheLocked() {
	if len(c.blocks) <= len(c.conv.Messages) {
		return
	}
	live := make(map[string]bool, len(c.conv.Messages))
	for _, msg := range c.conv.Messages {
		live[msg.ID] = true
	}
	for id := range c.blocks {
		if !live[id] {
			delete(c.blocks, id)
		}
	}
}

func (c *Controller) emit(u Update, observer Renderer) {
	if c.renderer != nil {
		c.renderer.Render(u)
	}
	if observer != nil {
		observer.Render(u)
	}
}

func segmentFor(msg model.Message) []format.Block {
	if msg.Role == model.RoleUser {
		return nil
	}
	return format.Segment(msg.Content)
}

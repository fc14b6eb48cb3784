// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jeranaias/mentorbot/internal/model"
)

// =============================================================================
// CONTROLLER MANAGER
// =============================================================================

// Factory builds the controller for a category.
type Factory func(category model.Category) (*Controller, error)

// Manager holds one controller per category, created and loaded on first
// use.
type Manager struct {
	mu       sync.Mutex
	factory  Factory
	ctrls    map[model.Category]*entry
	pending  map[model.Category]chan struct{} // Replace in progress
	shutdown bool
}

type entry struct {
	ctrl  *Controller
	ready chan struct{} // closed once the first Load returned
}

// NewManager creates a manager that builds controllers with factory.
func NewManager(factory Factory) *Manager {
	return &Manager{
		factory: factory,
		ctrls:   make(map[model.Category]*entry),
		pending: make(map[model.Category]chan struct{}),
	}
}

// Get returns the controller for category, creating it and loading its
// history on first use. Concurrent callers wait for that first load, and
// for a Replace of the same category to finish.
func (m *Manager) Get(ctx context.Context, category model.Category) (*Controller, error) {
	m.mu.Lock()
	for {
		if m.shutdown {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		p, ok := m.pending[category]
		if !ok {
			break
		}
		m.mu.Unlock()
		select {
		case <-p:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.mu.Lock()
	}
	if e, ok := m.ctrls[category]; ok {
		m.mu.Unlock()
		select {
		case <-e.ready:
			return e.ctrl, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c, err := m.factory(category)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	e := &entry{ctrl: c, ready: make(chan struct{})}
	m.ctrls[category] = e
	m.mu.Unlock()

	defer close(e.ready)
	if err := c.Load(ctx); err != nil && !errors.Is(err, ErrClosed) {
		return nil, err
	}
	return c, nil
}

// Lookup returns the controller for category without creating it.
func (m *Manager) Lookup(category model.Category) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ctrls[category]
	if !ok {
		return nil, false
	}
	return e.ctrl, true
}

// Replace runs fn, which changes the stored conversation of category,
// while no turn can run on it. The cached controller is retired so the
// next Get loads what fn stored. When a turn or a first load is running
// it returns ErrTurnInFlight and fn is not called.
func (m *Manager) Replace(ctx context.Context, category model.Category, fn func(context.Context) error) error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return ErrClosed
	}
	if _, ok := m.pending[category]; ok {
		m.mu.Unlock()
		return ErrTurnInFlight
	}
	e, cached := m.ctrls[category]
	if cached {
		select {
		case <-e.ready:
		default:
			m.mu.Unlock()
			return ErrTurnInFlight
		}
	}
	done := make(chan struct{})
	m.pending[category] = done
	m.mu.Unlock()

	var err error
	retired := true
	if cached {
		err = e.ctrl.Retire(ctx, fn)
		retired = !errors.Is(err, ErrTurnInFlight)
	} else {
		err = fn(ctx)
	}

	m.mu.Lock()
	delete(m.pending, category)
	if cached && retired && m.ctrls[category] == e {
		delete(m.ctrls, category)
	}
	m.mu.Unlock()
	close(done)
	return err
}

// Categories returns the categories with a live controller, sorted.
func (m *Manager) Categories() []model.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Category, 0, len(m.ctrls))
	for cat := range m.ctrls {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Shutdown closes every controller and waits for running turns to finish
// persisting, or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	ctrls := make([]*Controller, 0, len(m.ctrls))
	for _, e := range m.ctrls {
		ctrls = append(ctrls, e.ctrl)
	}
	m.mu.Unlock()

	for _, c := range ctrls {
		c.Close()
	}
	var errs []error
	for _, c := range ctrls {
		if err := c.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
	}
	return errors.Join(errs...)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import "sync"

// Fanout is a Renderer that forwards every Update to its subscribers in
// subscription order. Subscribers may come and go at any time.
type Fanout struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
}

type subscriber struct {
	id int
	r  Renderer
}

// NewFanout creates a Fanout with the given initial subscribers.
func NewFanout(rs ...Renderer) *Fanout {
	f := &Fanout{}
	for _, r := range rs {
		f.Subscribe(r)
	}
	return f
}

// Subscribe adds r and returns a function that removes it again. The
// function is safe to call more than once.
func (f *Fanout) Subscribe(r Renderer) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.subs = append(f.subs, subscriber{id: id, r: r})

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

func (f *Fanout) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s.id == id {
			// Copy so Render calls iterating the old slice are unaffected.
			f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Render forwards u to every current subscriber. Subscribers may
// unsubscribe from inside Render.
func (f *Fanout) Render(u Update) {
	f.mu.RLock()
	subs := f.subs
	f.mu.RUnlock()
	for _, s := range subs {
		s.r.Render(u)
	}
}

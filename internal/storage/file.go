// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/util"
)

const (
	lockFileName   = ".lock"
	lockRetryDelay = 10 * time.Millisecond
	lockTimeout    = 5 * time.Second
)

// FileStore keeps one JSON file per conversation under
// BaseDir/<user>/<category>.json.
//
// The store is safe for concurrent use. A lock file per user directory
// also serializes writers in other processes, such as a running chat and
// a server sharing BaseDir.
type FileStore struct {
	BaseDir string
	mu      sync.Mutex
}

// NewFileStore creates a store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, errors.New("file store directory must not be empty")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{BaseDir: baseDir}, nil
}

// Save writes the conversation, keeping the original creation time.
func (s *FileStore) Save(ctx context.Context, user string, category model.Category, msgs []model.WireMessage) (*Record, error) {
	if err := validate(user, category, msgs); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rec := &Record{User: user, Category: category, Messages: msgs, CreatedAt: now, UpdatedAt: now}
	if rec.Messages == nil {
		rec.Messages = []model.WireMessage{}
	}

	err := s.withLock(ctx, user, true, func() error {
		if prev, err := s.read(user, category); err == nil {
			rec.CreatedAt = prev.CreatedAt
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode conversation: %w", err)
		}
		return util.AtomicWriteFileWithDir(s.path(user, category), data, 0o600, 0o700)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Load reads the conversation for (user, category).
func (s *FileStore) Load(ctx context.Context, user string, category model.Category) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec *Record
	err := s.withLock(ctx, user, false, func() error {
		var err error
		rec, err = s.read(user, category)
		return err
	})
	return rec, err
}

// List reads every conversation of user, newest first.
func (s *FileStore) List(ctx context.Context, user string) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Summary
	err := s.withLock(ctx, user, false, func() error {
		entries, err := os.ReadDir(s.userDir(user))
		if err != nil {
			return err
		}
		out = s.summaries(user, entries)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *FileStore) summaries(user string, entries []fs.DirEntry) []Summary {
	var out []Summary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.read(user, model.Category(strings.TrimSuffix(name, ".json")))
		if err != nil {
			// Skip corrupted files
			continue
		}
		out = append(out, summarize(rec))
	}
	return out
}

// Delete removes the conversation file.
func (s *FileStore) Delete(ctx context.Context, user string, category model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withLock(ctx, user, true, func() error {
		return os.Remove(s.path(user, category))
	})
	if errors.Is(err, fs.ErrNotExist) {
		return ErrConversationNotFound
	}
	return err
}

// withLock runs fn holding the user directory's lock file, exclusively
// for writes and shared for reads. Reads of a user without a directory run
// unlocked; fn reports the missing files itself.
func (s *FileStore) withLock(ctx context.Context, user string, exclusive bool, fn func() error) error {
	dir := s.userDir(user)
	if exclusive {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	} else if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fn()
	}

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	lock := flock.New(filepath.Join(dir, lockFileName))
	var locked bool
	var err error
	if exclusive {
		locked, err = lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("lock %s: %w", dir, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: held by another process", dir)
	}
	defer lock.Unlock()

	return fn()
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) read(user string, category model.Category) (*Record, error) {
	if !category.Valid() {
		return nil, ErrConversationNotFound
	}
	data, err := os.ReadFile(s.path(user, category))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt conversation file %s: %w", s.path(user, category), err)
	}
	return &rec, nil
}

func (s *FileStore) userDir(user string) string {
	return filepath.Join(s.BaseDir, safeName(user))
}

func (s *FileStore) path(user string, category model.Category) string {
	return filepath.Join(s.userDir(user), string(category)+".json")
}

// safeName maps a user name onto a single path element.
func safeName(user string) string {
	var b strings.Builder
	for _, r := range user {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || strings.Trim(name, ".") == "" {
		return "_" + name
	}
	return name
}

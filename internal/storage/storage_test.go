// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mentorbot/internal/model"
)

func turn(user, assistant string) []model.WireMessage {
	return []model.WireMessage{
		{Role: model.RoleUser, Content: user},
		{Role: model.RoleAssistant, Content: assistant},
	}
}

// =============================================================================
// SHARED STORE CONTRACT
// =============================================================================

func storeContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Load(ctx, "jesse", model.CategoryChat)
		assert.ErrorIs(t, err, ErrConversationNotFound)
	})

	t.Run("save then load", func(t *testing.T) {
		s := open(t)
		rec, err := s.Save(ctx, "jesse", model.CategoryChat, turn("Hi", "Hello — which role?"))
		require.NoError(t, err)
		assert.False(t, rec.UpdatedAt.IsZero())

		got, err := s.Load(ctx, "jesse", model.CategoryChat)
		require.NoError(t, err)
		assert.Equal(t, turn("Hi", "Hello — which role?"), got.Messages)
		assert.Equal(t, model.CategoryChat, got.Category)
	})

	t.Run("save is an upsert", func(t *testing.T) {
		s := open(t)
		first, err := s.Save(ctx, "jesse", model.CategoryTodo, turn("a", "b"))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		longer := append(turn("a", "b"), turn("c", "d")...)
		second, err := s.Save(ctx, "jesse", model.CategoryTodo, longer)
		require.NoError(t, err)
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())

		got, err := s.Load(ctx, "jesse", model.CategoryTodo)
		require.NoError(t, err)
		assert.Len(t, got.Messages, 4)

		list, err := s.List(ctx, "jesse")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("users are isolated", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, "alex", model.CategoryMental, turn("x", "y"))
		require.NoError(t, err)

		_, err = s.Load(ctx, "sam", model.CategoryMental)
		assert.ErrorIs(t, err, ErrConversationNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, "jesse", model.CategoryChat, turn("chat question", "a"))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		_, err = s.Save(ctx, "jesse", model.CategoryResume, turn("resume question", "a"))
		require.NoError(t, err)

		list, err := s.List(ctx, "jesse")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, model.CategoryResume, list[0].Category)
		assert.Equal(t, "resume question", list[0].Preview)
		assert.Equal(t, 2, list[1].MessageCount)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, "jesse", model.CategoryChat, turn("a", "b"))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "jesse", model.CategoryChat))
		assert.ErrorIs(t, s.Delete(ctx, "jesse", model.CategoryChat), ErrConversationNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, "jesse", "../../etc", turn("a", "b"))
		assert.True(t, IsValidation(err), "got %v", err)

		_, err = s.Save(ctx, "", model.CategoryChat, turn("a", "b"))
		assert.True(t, IsValidation(err))

		_, err = s.Save(ctx, "jesse", model.CategoryChat, []model.WireMessage{{Role: model.RoleSystem, Content: "x"}})
		assert.True(t, IsValidation(err))
	})

	t.Run("empty conversation", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, "jesse", model.CategoryChat, nil)
		require.NoError(t, err)
		got, err := s.Load(ctx, "jesse", model.CategoryChat)
		require.NoError(t, err)
		assert.Empty(t, got.Messages)
	})

	t.Run("concurrent saves", func(t *testing.T) {
		s := open(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Save(ctx, "jesse", model.CategoryChat, turn("q", "a"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		list, err := s.List(ctx, "jesse")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "mentorbot.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore_Memory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(context.Background(), "jesse", model.CategoryChat, turn("a", "b"))
	require.NoError(t, err)
	_, err = s.Load(context.Background(), "jesse", model.CategoryChat)
	assert.NoError(t, err)
}

func TestFileStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestFileStore_SafeUserPath(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "../evil", model.CategoryChat, turn("a", "b"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ".._evil", "chat.json"))
	assert.NoError(t, err)
	assert.Equal(t, "_..", safeName(".."))
}

func TestFileStore_SharedDirectory(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileStore(dir)
	require.NoError(t, err)
	b, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := a
			if i%2 == 1 {
				s = b
			}
			_, err := s.Save(ctx, "jesse", model.CategoryTodo, turn("q", "a"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	_, err = os.Stat(filepath.Join(dir, "jesse", lockFileName))
	assert.NoError(t, err)

	list, err := a.List(ctx, "jesse")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.CategoryTodo, list[0].Category)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{Driver: DriverFile, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(Config{Driver: "mongo"})
	assert.Error(t, err)
}

// =============================================================================
// USER STORE
// =============================================================================

func TestUserStore_History(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	us := ForUser(s, "jesse")
	ctx := context.Background()

	history, err := us.History(ctx, model.CategoryChat)
	require.NoError(t, err)
	assert.Nil(t, history)

	require.NoError(t, us.Persist(ctx, model.CategoryChat, turn("q", "a")))
	history, err = us.History(ctx, model.CategoryChat)
	require.NoError(t, err)
	assert.Equal(t, turn("q", "a"), history)
}

// =============================================================================
// REMOTE STORE
// =============================================================================

func TestRemoteStore(t *testing.T) {
	var mu sync.Mutex
	saved := map[model.Category]conversationPayload{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mu.Lock()
		defer mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/users/conversation":
			var p conversationPayload
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			p.UpdatedAt = time.Now().UTC()
			saved[p.Category] = p
			json.NewEncoder(w).Encode(p)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/users/conversation/"):
			p, ok := saved[model.Category(strings.TrimPrefix(r.URL.Path, "/api/users/conversation/"))]
			if !ok {
				http.Error(w, `{"detail":"Conversation not found for this category."}`, http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(p)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	s := NewRemoteStore(srv.URL+"/", "tok")

	_, err := s.Load(ctx, "", model.CategoryChat)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	rec, err := s.Save(ctx, "", model.CategoryChat, turn("q", "a"))
	require.NoError(t, err)
	assert.Equal(t, turn("q", "a"), rec.Messages)

	list, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.CategoryChat, list[0].Category)

	_, err = NewRemoteStore(srv.URL, "wrong").Load(ctx, "", model.CategoryChat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

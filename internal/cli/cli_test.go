// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mentorbot/internal/config"
	"github.com/jeranaias/mentorbot/internal/inference"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/storage"
)

// =============================================================================
// HARNESS
// =============================================================================

// portal is a fake assistant portal answering every chat with reply.
type portal struct {
	mu       sync.Mutex
	reply    string
	status   int
	payloads []inference.ChatPayload
}

func (p *portal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload inference.ChatPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)
	p.mu.Lock()
	p.payloads = append(p.payloads, payload)
	status, reply := p.status, p.reply
	p.mu.Unlock()

	if status != 0 {
		http.Error(w, "down", status)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, part := range strings.SplitAfter(reply, "\n") {
		_, _ = io.WriteString(w, part)
		w.(http.Flusher).Flush()
	}
}

func (p *portal) last() inference.ChatPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.payloads[len(p.payloads)-1]
}

type env struct {
	t          *testing.T
	dir        string
	configPath string
	portal     *portal
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("MENTORBOT_USER", "ada")
	config.ResetGlobalForTesting()
	t.Cleanup(config.ResetGlobalForTesting)

	p := &portal{reply: "Practice Topics:\n* Arrays - easy, hashing\n"}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Backend.URL = srv.URL
	cfg.Storage.Driver = storage.DriverFile
	cfg.Storage.Path = filepath.Join(dir, "conversations")
	cfg.Log.File = filepath.Join(dir, "mentorbot.log")
	cfg.UI.Theme = "plain"
	cfg.UI.WordWrap = false

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, config.Save(cfg, path))
	return &env{t: t, dir: dir, configPath: path, portal: p}
}

// run executes the command line with stdin and returns stdout, stderr and
// the exit code.
func (e *env) run(stdin string, args ...string) (string, string, int) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	streams := Streams{In: strings.NewReader(stdin), Out: &out, Err: &errOut}
	code := Execute(context.Background(), append([]string{"--config", e.configPath}, args...), streams)
	return out.String(), errOut.String(), code
}

func (e *env) store() storage.Store {
	e.t.Helper()
	s, err := storage.NewFileStore(filepath.Join(e.dir, "conversations"))
	require.NoError(e.t, err)
	return s
}

func decodeData(t *testing.T, out string, data any) JSONResponse {
	t.Helper()
	resp := JSONResponse{Data: data}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

// =============================================================================
// FORMAT
// =============================================================================

func TestFormat_Plain(t *testing.T) {
	e := newEnv(t)
	out, _, code := e.run("Core Skills:\n- Go - concurrency, testing\nShip small changes.\n", "format")

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Core Skills")
	assert.Contains(t, out, "Go")
	assert.Contains(t, out, "concurrency")
	assert.Contains(t, out, "Ship small changes.")
}

func TestFormat_JSON(t *testing.T) {
	e := newEnv(t)
	out, _, code := e.run("**Core Skills:**\n- Go - concurrency, testing\n", "format", "--json")
	require.Equal(t, ExitSuccess, code)

	var blocks []struct {
		Kind  string   `json:"kind"`
		Title string   `json:"title"`
		Tags  []string `json:"tags"`
	}
	resp := decodeData(t, out, &blocks)
	assert.True(t, resp.Success)
	assert.Equal(t, "format", resp.Command)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Core Skills", blocks[0].Title)
	assert.Equal(t, []string{"concurrency", "testing"}, blocks[1].Tags)
}

func TestFormat_MarkdownFromFile(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "reply.txt")
	require.NoError(t, os.WriteFile(path, []byte("Next Steps:\n1. Update resume\n"), 0600))

	out, _, code := e.run("", "format", "--markdown", path)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Next Steps")
	assert.Contains(t, out, "Update resume")
}

func TestFormat_ConflictingFlags(t *testing.T) {
	e := newEnv(t)
	_, errOut, code := e.run("x", "format", "--json", "--markdown")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "cannot be combined")
}

func TestFormat_MissingFile(t *testing.T) {
	e := newEnv(t)
	_, _, code := e.run("", "format", filepath.Join(e.dir, "nope.txt"))
	assert.Equal(t, ExitGeneralError, code)
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsAndSaves(t *testing.T) {
	e := newEnv(t)
	out, _, code := e.run("", "ask", "Mock", "interview", "for", "Acme")
	require.Equal(t, ExitSuccess, code)

	assert.Contains(t, out, "Practice Topics")
	assert.Contains(t, out, "Arrays")

	payload := e.portal.last()
	assert.Equal(t, model.CategoryChat, payload.Category)
	assert.NotEmpty(t, payload.System)
	last := payload.Messages[len(payload.Messages)-1]
	assert.Equal(t, model.RoleUser, last.Role)
	assert.Equal(t, "Mock interview for Acme", last.Content)

	rec, err := e.store().Load(context.Background(), "ada", model.CategoryChat)
	require.NoError(t, err)
	require.Len(t, rec.Messages, 3)
	assert.Equal(t, model.RoleAssistant, rec.Messages[0].Role)
	assert.Equal(t, "Practice Topics:\n* Arrays - easy, hashing\n", rec.Messages[2].Content)
}

func TestAsk_ContinuesStoredConversation(t *testing.T) {
	e := newEnv(t)
	_, err := e.store().Save(context.Background(), "ada", model.CategoryResume, []model.WireMessage{
		{Role: model.RoleUser, Content: "Here is my resume"},
		{Role: model.RoleAssistant, Content: "Looks good"},
	})
	require.NoError(t, err)

	_, _, code := e.run("", "ask", "-c", "resume", "And the summary?")
	require.Equal(t, ExitSuccess, code)

	payload := e.portal.last()
	assert.Equal(t, model.CategoryResume, payload.Category)
	require.Len(t, payload.Messages, 3)
	assert.Equal(t, "Here is my resume", payload.Messages[0].Content)
}

func TestAsk_JSONNoSave(t *testing.T) {
	e := newEnv(t)
	out, _, code := e.run("Plan my week\n", "ask", "--json", "--no-save", "-c", "todo")
	require.Equal(t, ExitSuccess, code)

	var res AskResult
	resp := decodeData(t, out, &res)
	assert.True(t, resp.Success)
	assert.Equal(t, model.CategoryTodo, res.Category)
	assert.Equal(t, "complete", res.Phase)
	assert.Equal(t, e.portal.reply, res.Reply)
	assert.Len(t, res.Blocks, 2)

	// Stdin was the message and nothing was stored.
	assert.Equal(t, "Plan my week\n", e.portal.last().Messages[len(e.portal.last().Messages)-1].Content)
	_, err := e.store().Load(context.Background(), "ada", model.CategoryTodo)
	assert.ErrorIs(t, err, storage.ErrConversationNotFound)
}

func TestAsk_BackendFailure(t *testing.T) {
	e := newEnv(t)
	e.portal.status = http.StatusInternalServerError

	out, errOut, code := e.run("", "ask", "hello")
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, errOut, ErrReplyFailed.Error())
	assert.NotEmpty(t, out)

	// The failed exchange is still saved.
	rec, err := e.store().Load(context.Background(), "ada", model.CategoryChat)
	require.NoError(t, err)
	assert.Len(t, rec.Messages, 3)
}

func TestAsk_Usage(t *testing.T) {
	e := newEnv(t)

	_, _, code := e.run("   ", "ask")
	assert.Equal(t, ExitUsageError, code)

	_, errOut, code := e.run("", "ask", "-c", "gardening", "hi")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "unknown category")
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_ScriptedSession(t *testing.T) {
	e := newEnv(t)
	out, _, code := e.run("first question\n/help\n/bogus\n/new\n/quit\nnever sent\n", "chat")
	require.Equal(t, ExitSuccess, code)

	assert.Contains(t, out, "start mock questions")
	assert.Contains(t, out, "Arrays")
	assert.Contains(t, out, "/new, /reset")
	assert.Contains(t, out, "Unknown command /bogus")

	e.portal.mu.Lock()
	assert.Len(t, e.portal.payloads, 1)
	e.portal.mu.Unlock()
}

// =============================================================================
// HISTORY
// =============================================================================

func seed(t *testing.T, e *env) {
	t.Helper()
	_, err := e.store().Save(context.Background(), "ada", model.CategoryChat, []model.WireMessage{
		{Role: model.RoleUser, Content: "Mock interview please"},
		{Role: model.RoleAssistant, Content: "Warm Up:\n- Tell me about yourself - behavioral"},
	})
	require.NoError(t, err)
}

func TestHistory_ListEmpty(t *testing.T) {
	e := newEnv(t)
	out, _, code := e.run("", "history", "list")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "No saved conversations.")
}

func TestHistory_List(t *testing.T) {
	e := newEnv(t)
	seed(t, e)

	out, _, code := e.run("", "history", "list")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "chat")
	assert.Contains(t, out, "Mock interview please")

	out, _, code = e.run("", "history", "list", "--json")
	require.Equal(t, ExitSuccess, code)
	var list []storage.Summary
	decodeData(t, out, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].MessageCount)
}

func TestHistory_ShowAndExport(t *testing.T) {
	e := newEnv(t)
	seed(t, e)

	out, _, code := e.run("", "history", "show", "chat")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "# Interview Coach")
	assert.Contains(t, out, "Tell me about yourself")

	target := filepath.Join(e.dir, "export.json")
	_, errOut, code := e.run("", "history", "export", "chat", "--format", "json", "-o", target)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, errOut, "Exported chat")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	var rec storage.Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Len(t, rec.Messages, 2)

	_, _, code = e.run("", "history", "export", "chat", "--format", "pdf")
	assert.Equal(t, ExitUsageError, code)
}

func TestHistory_NotFound(t *testing.T) {
	e := newEnv(t)
	_, _, code := e.run("", "history", "show", "resume")
	assert.Equal(t, ExitNotFound, code)

	_, _, code = e.run("", "history", "show")
	assert.Equal(t, ExitUsageError, code)
}

func TestHistory_Delete(t *testing.T) {
	e := newEnv(t)
	seed(t, e)

	// Not a terminal and no --yes.
	_, _, code := e.run("", "history", "delete", "chat")
	assert.Equal(t, ExitUsageError, code)

	out, _, code := e.run("", "history", "delete", "chat", "--yes")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Deleted chat.")

	_, _, code = e.run("", "history", "delete", "chat", "--yes")
	assert.Equal(t, ExitNotFound, code)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_Path(t *testing.T) {
	e := newEnv(t)
	out, _, code := e.run("", "config", "path")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, e.configPath+"\n", out)
}

func TestConfig_ShowMasksSecrets(t *testing.T) {
	e := newEnv(t)
	t.Setenv("MENTORBOT_TOKEN", "portal-secret-1234")

	out, _, code := e.run("", "config", "show")
	require.Equal(t, ExitSuccess, code)
	assert.NotContains(t, out, "portal-secret")
	assert.Contains(t, out, "****1234")
}

func TestConfig_Init(t *testing.T) {
	e := newEnv(t)

	_, errOut, code := e.run("", "config", "init")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "already exists")

	// A broken file does not stop init --force.
	require.NoError(t, os.WriteFile(e.configPath, []byte("[backend\n"), 0600))
	out, _, code := e.run("", "config", "init", "--force")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Wrote")

	_, err := config.Load(e.configPath)
	assert.NoError(t, err)
}

func TestConfig_InvalidFile(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.configPath, []byte("[ui]\ntheme = \"neon\"\n"), 0600))

	_, errOut, code := e.run("", "format")
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, errOut, "ui.theme")
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	out, _, code := e.run("", "version", "--json")
	require.Equal(t, ExitSuccess, code)

	var info VersionInfo
	decodeData(t, out, &info)
	assert.Equal(t, Version, info.Version)
	assert.Contains(t, info.Platform, "/")
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"canceled", context.Canceled, ExitInterrupted},
		{"usage", usageErrorf("bad"), ExitUsageError},
		{"config", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}, ExitConfigError},
		{"not found", wrap("history", "show", storage.ErrConversationNotFound), ExitNotFound},
		{"deadline", context.DeadlineExceeded, ExitTimeout},
		{"client", &inference.ClientError{Type: inference.ErrTypeConnection, Message: "refused"}, ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestDisplayError_JSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, fmt.Errorf("storage offline"), true)

	resp := decodeData(t, buf.String(), nil)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "storage offline", *resp.Error)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "****cdef", maskSecret("0123456789abcdef"))
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, isLoopback("127.0.0.1:8080"))
	assert.True(t, isLoopback("localhost:8080"))
	assert.True(t, isLoopback("[::1]:8080"))
	assert.False(t, isLoopback(":8080"))
	assert.False(t, isLoopback("0.0.0.0:8080"))
}

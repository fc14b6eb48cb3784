// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/jeranaias/mentorbot/internal/inference"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/storage"
	"github.com/jeranaias/mentorbot/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete mentorbot configuration.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Storage StorageConfig `toml:"storage"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	UI      UIConfig      `toml:"ui"`

	// Categories is keyed by category name (chat, mental, resume, todo, ...).
	Categories map[string]CategoryConfig `toml:"categories"`
}

// BackendConfig selects and tunes the inference backend.
type BackendConfig struct {
	Kind              string `toml:"kind"`
	URL               string `toml:"url"`
	Model             string `toml:"model"`
	Token             string `toml:"token,omitempty"`
	TimeoutSecs       int    `toml:"timeout_secs"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	Charset           string `toml:"charset,omitempty"`
}

// StorageConfig selects where conversations are persisted.
type StorageConfig struct {
	Driver string `toml:"driver"`
	// Path is the database file (sqlite) or directory (file).
	Path string `toml:"path"`
	// User owns the stored conversations. Empty means $USER.
	User string `toml:"user,omitempty"`
}

// ServerConfig configures `mentorbot serve`.
type ServerConfig struct {
	Addr              string   `toml:"addr"`
	CORSOrigins       []string `toml:"cors_origins"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
	// Token, when set, must be sent by clients as a bearer token.
	Token string `toml:"token,omitempty"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `toml:"level"`
	// File receives log output. The TUI always logs to a file.
	File string `toml:"file,omitempty"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	WordWrap bool   `toml:"word_wrap"`
	Icons    bool   `toml:"icons"`
	ShowTags bool   `toml:"show_tags"`
	Theme    string `toml:"theme"`
}

// CategoryConfig configures one conversation view.
type CategoryConfig struct {
	Title        string `toml:"title"`
	Greeting     string `toml:"greeting,omitempty"`
	SystemPrompt string `toml:"system_prompt,omitempty"`
}

// Defaults used when fields are left empty.
const (
	DefaultServerAddr = "127.0.0.1:8080"
	DefaultLogLevel   = "info"
	DefaultTheme      = "auto"

	// ChatGreeting is shown when the chat view has no stored history.
	ChatGreeting = "Hi — I'm MentorBot. Tell me the role/company and we'll start mock questions."
)

// Default returns a configuration with sensible defaults.
func Default() *Config {
	backend := inference.DefaultConfig()
	dir, err := ConfigDir()
	if err != nil {
		dir = ".mentorbot"
	}

	return &Config{
		Backend: BackendConfig{
			Kind:              backend.Kind,
			URL:               backend.BaseURL,
			Model:             backend.Model,
			TimeoutSecs:       int(backend.Timeout / time.Second),
			RequestsPerMinute: backend.RequestsPerMinute,
		},
		Storage: StorageConfig{
			Driver: storage.DriverSQLite,
			Path:   filepath.Join(dir, "conversations.db"),
		},
		Server: ServerConfig{
			Addr:              DefaultServerAddr,
			CORSOrigins:       []string{"http://localhost:5173"},
			RequestsPerMinute: 120,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
			File:  filepath.Join(dir, "mentorbot.log"),
		},
		UI: UIConfig{
			WordWrap: true,
			Icons:    true,
			ShowTags: true,
			Theme:    DefaultTheme,
		},
		Categories: defaultCategories(),
	}
}

func defaultCategories() map[string]CategoryConfig {
	return map[string]CategoryConfig{
		string(model.CategoryChat): {
			Title:    "Interview Coach",
			Greeting: ChatGreeting,
			SystemPrompt: "You are MentorBot, an interview coach. Ask one mock interview question at a time " +
				"for the role and company the user names, then give concise feedback. Group practice " +
				"topics under bold headers ending in a colon and list problems as bullets followed by " +
				"' - ' and comma separated tags.",
		},
		string(model.CategoryMental): {
			Title:        "Wellness Journal",
			Greeting:     "Hi — I'm MentorBot. How are you feeling today?",
			SystemPrompt: "You are a supportive listener. Reply with warmth and brevity.",
		},
		string(model.CategoryResume): {
			Title:        "Resume Review",
			Greeting:     "Hi — I'm MentorBot. Paste your resume and I'll review it.",
			SystemPrompt: "You review resumes. Give specific, actionable suggestions as bullet points.",
		},
		string(model.CategoryTodo): {
			Title:        "To-Do Planner",
			Greeting:     "Hi — I'm MentorBot. Tell me your goal and I'll break it into steps.",
			SystemPrompt: "You turn goals into short, ordered to-do lists.",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the mentorbot configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".mentorbot"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens a config file holding tokens to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the configuration at path, or the default path when path is
// empty. A missing file yields the defaults. Environment overrides are
// applied last and the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	path = util.ExpandHome(path)

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values. Undecoded keys are rejected so typos surface.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		log.Warn("could not ensure secure permissions", "path", path, "err", err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Save writes the configuration to path (the default path when empty) with
// 0600 permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	path = util.ExpandHome(path)

	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML with a header comment.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# mentorbot configuration file\n")
	buf.WriteString("# Generated by mentorbot - edit with care\n")
	buf.WriteString("#\n")
	buf.WriteString("# Environment variables (MENTORBOT_*) override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch strings.ToLower(c.Backend.Kind) {
	case inference.KindPortal, inference.KindOllama:
	default:
		add("backend.kind", "invalid kind '%s', must be one of: portal, ollama", c.Backend.Kind)
	}
	if err := validateURL(c.Backend.URL); err != nil {
		add("backend.url", "%v", err)
	}
	if c.Backend.TimeoutSecs < 0 || c.Backend.TimeoutSecs > 3600 {
		add("backend.timeout_secs", "must be between 0 and 3600, got %d", c.Backend.TimeoutSecs)
	}
	if c.Backend.RequestsPerMinute < 0 {
		add("backend.requests_per_minute", "must not be negative, got %d", c.Backend.RequestsPerMinute)
	}
	if strings.EqualFold(c.Backend.Kind, inference.KindOllama) && c.Backend.Model == "" {
		add("backend.model", "required for the ollama backend")
	}

	switch c.Storage.Driver {
	case storage.DriverSQLite, storage.DriverFile:
		if c.Storage.Path == "" {
			add("storage.path", "required for the %s driver", c.Storage.Driver)
		}
	case storage.DriverRemote:
	default:
		add("storage.driver", "invalid driver '%s', must be one of: sqlite, file, remote", c.Storage.Driver)
	}

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if c.Server.RequestsPerMinute < 0 {
		add("server.requests_per_minute", "must not be negative, got %d", c.Server.RequestsPerMinute)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error, fatal", c.Log.Level)
	}

	switch c.UI.Theme {
	case "auto", "dark", "light", "plain":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light, plain", c.UI.Theme)
	}

	for _, name := range c.CategoryNames() {
		if !model.Category(name).Valid() {
			add("categories."+name, "invalid category name")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// SetDefaults fills fields left empty by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Backend.Kind == "" {
		c.Backend.Kind = d.Backend.Kind
	}
	c.Backend.Kind = strings.ToLower(c.Backend.Kind)
	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	c.Storage.Path = util.ExpandHome(c.Storage.Path)
	c.Log.File = util.ExpandHome(c.Log.File)
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Categories == nil {
		c.Categories = map[string]CategoryConfig{}
	}
	for name, def := range d.Categories {
		cur, ok := c.Categories[name]
		if !ok {
			c.Categories[name] = def
			continue
		}
		if cur.Title == "" {
			cur.Title = def.Title
		}
		if cur.Greeting == "" {
			cur.Greeting = def.Greeting
		}
		if cur.SystemPrompt == "" {
			cur.SystemPrompt = def.SystemPrompt
		}
		c.Categories[name] = cur
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - MENTORBOT_BACKEND_URL: overrides backend.url
//   - MENTORBOT_BACKEND_KIND: overrides backend.kind
//   - MENTORBOT_TOKEN: overrides backend.token
//   - MENTORBOT_MODEL: overrides backend.model
//   - MENTORBOT_STORAGE_PATH: overrides storage.path
//   - MENTORBOT_LOG_LEVEL: overrides log.level
//   - MENTORBOT_USER: overrides storage.user
//   - MENTORBOT_SERVER_TOKEN: overrides server.token
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MENTORBOT_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("MENTORBOT_BACKEND_KIND"); v != "" {
		c.Backend.Kind = v
	}
	if v := os.Getenv("MENTORBOT_TOKEN"); v != "" {
		c.Backend.Token = v
	}
	if v := os.Getenv("MENTORBOT_MODEL"); v != "" {
		c.Backend.Model = v
	}
	if v := os.Getenv("MENTORBOT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("MENTORBOT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MENTORBOT_USER"); v != "" {
		c.Storage.User = v
	}
	if v := os.Getenv("MENTORBOT_SERVER_TOKEN"); v != "" {
		c.Server.Token = v
	}
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// InferenceConfig converts the backend section for inference.New.
func (c *Config) InferenceConfig() inference.Config {
	return inference.Config{
		Kind:              c.Backend.Kind,
		BaseURL:           c.Backend.URL,
		Token:             c.Backend.Token,
		Model:             c.Backend.Model,
		Timeout:           time.Duration(c.Backend.TimeoutSecs) * time.Second,
		RequestsPerMinute: c.Backend.RequestsPerMinute,
		Charset:           c.Backend.Charset,
	}
}

// StorageConfig converts the storage section for storage.Open. The remote
// driver reuses the backend URL and token, since the portal serves history.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Driver: c.Storage.Driver,
		Path:   c.Storage.Path,
		URL:    c.Backend.URL,
		Token:  c.Backend.Token,
	}
}

// User returns the user owning stored conversations.
func (c *Config) User() string {
	if c.Storage.User != "" {
		return c.Storage.User
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "local"
}

// Category returns the settings for name. Unconfigured categories get a
// title derived from the name and no greeting or prompt.
func (c *Config) Category(name string) CategoryConfig {
	if cc, ok := c.Categories[name]; ok {
		if cc.Title == "" {
			cc.Title = name
		}
		return cc
	}
	return CategoryConfig{Title: name}
}

// CategoryNames returns the configured categories, builtins first in their
// canonical order, then the rest sorted.
func (c *Config) CategoryNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, cat := range model.BuiltinCategories {
		if _, ok := c.Categories[string(cat)]; ok {
			names = append(names, string(cat))
			seen[string(cat)] = true
		}
	}
	var extra []string
	for name := range c.Categories {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	clone.Categories = make(map[string]CategoryConfig, len(c.Categories))
	for k, v := range c.Categories {
		clone.Categories[k] = v
	}
	return &clone
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it from the
// default path on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load("")
		if err != nil {
			log.Warn("using default config", "err", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}

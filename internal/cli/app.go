// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/mentorbot/internal/config"
	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/inference"
	"github.com/jeranaias/mentorbot/internal/logging"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/render"
	"github.com/jeranaias/mentorbot/internal/storage"
	"github.com/jeranaias/mentorbot/internal/ui/styles"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app carries what every command needs: configuration, logger and the
// lazily opened backend and store.
type app struct {
	streams Streams
	flags   struct {
		configPath string
		category   string
		logLevel   string
	}

	cfg        *config.Config
	configPath string
	logger     *log.Logger
	closers    []func() error

	backend inference.Backend
	store   storage.Store
}

// setup loads the configuration and logger for cmd.
func (a *app) setup(cmd *cobra.Command) error {
	path := a.flags.configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	a.configPath = path

	if cmd.Annotations[annNoConfig] == "true" {
		a.cfg = config.Default()
	} else {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.flags.logLevel != "" {
		a.cfg.Log.Level = strings.ToLower(a.flags.logLevel)
	}
	config.SetGlobal(a.cfg)

	logger, closeFn, err := logging.New(logging.Options{
		Level:     a.cfg.Log.Level,
		File:      a.cfg.Log.File,
		ForceFile: cmd.Annotations[annLogToFile] == "true",
	})
	if err != nil {
		return config.ValidateErrors{{Field: "log.level", Message: err.Error()}}
	}
	a.logger = logger
	a.closers = append(a.closers, closeFn)
	return nil
}

// close releases everything setup and the lazy getters opened.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Backend returns the inference client, building it on first use.
func (a *app) Backend() (inference.Backend, error) {
	if a.backend == nil {
		b, err := inference.New(a.cfg.InferenceConfig())
		if err != nil {
			return nil, err
		}
		a.backend = b
	}
	return a.backend, nil
}

// Store returns the conversation store, opening it on first use.
func (a *app) Store() (storage.Store, error) {
	if a.store == nil {
		s, err := storage.Open(a.cfg.StorageConfig())
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	}
	return a.store, nil
}

// category returns the --category value, or fallback when the flag is unset.
func (a *app) category(fallback model.Category) (model.Category, error) {
	name := a.flags.category
	if name == "" {
		return fallback, nil
	}
	return a.checkCategory(name)
}

// checkCategory accepts the configured categories only.
func (a *app) checkCategory(name string) (model.Category, error) {
	names := a.cfg.CategoryNames()
	if !slices.Contains(names, name) {
		return "", usageErrorf("unknown category %q (choose from %s)", name, strings.Join(names, ", "))
	}
	return model.Category(name), nil
}

// newController builds a controller for user's category. A nil renderer
// is allowed; save=false keeps the conversation out of storage.
func (a *app) newController(user string, cat model.Category, r conversation.Renderer, save bool) (*conversation.Controller, error) {
	backend, err := a.Backend()
	if err != nil {
		return nil, err
	}
	cc := a.cfg.Category(string(cat))
	opts := []conversation.Option{
		conversation.WithLogger(a.logger.With("category", cat)),
		conversation.WithGreeting(cc.Greeting),
		conversation.WithSystemPrompt(cc.SystemPrompt),
	}
	if save {
		store, err := a.Store()
		if err != nil {
			return nil, err
		}
		us := storage.ForUser(store, user)
		opts = append(opts, conversation.WithPersister(us), conversation.WithHistory(us))
	}
	if r != nil {
		opts = append(opts, conversation.WithRenderer(r))
	}
	return conversation.New(cat, backend, opts...), nil
}

// renderer builds a block renderer for output written to w, following the
// [ui] section.
func (a *app) renderer(w io.Writer) *render.Renderer {
	theme := styles.NewTheme(a.cfg.UI.Theme, w)
	width := 0
	if a.cfg.UI.WordWrap {
		width = styles.TerminalWidth(w)
	}
	return render.New(theme, render.Options{
		Width:     width,
		Icons:     a.cfg.UI.Icons,
		ShowTags:  a.cfg.UI.ShowTags,
		Highlight: !theme.Plain,
	})
}

func isUsage(err error, target **UsageError) bool {
	return errors.As(err, target)
}

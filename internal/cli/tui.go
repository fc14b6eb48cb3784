// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/input"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/ui/chat"
	"github.com/jeranaias/mentorbot/internal/ui/styles"
)

// shutdownTimeout bounds how long exit waits for pending saves.
const shutdownTimeout = 5 * time.Second

func newTUICmd(a *app) *cobra.Command {
	var dictate string
	cmd := &cobra.Command{
		Use:         "tui",
		Short:       "Open the full-screen chat (default)",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annLogToFile: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context(), dictate)
		},
	}
	cmd.Flags().StringVar(&dictate, "dictate", "", "also submit lines appended to this file")
	return cmd
}

// runTUI runs the Bubble Tea chat screen with one tab per category.
func (a *app) runTUI(ctx context.Context, dictatePath string) error {
	initial, err := a.category(model.CategoryChat)
	if err != nil {
		return err
	}

	names := a.cfg.CategoryNames()
	tabs := make([]chat.Tab, len(names))
	start := 0
	for i, n := range names {
		tabs[i] = chat.Tab{Category: model.Category(n), Title: a.cfg.Category(n).Title}
		if model.Category(n) == initial {
			start = i
		}
	}

	user := a.cfg.User()
	bridge := chat.NewBridge()
	manager := conversation.NewManager(func(cat model.Category) (*conversation.Controller, error) {
		return a.newController(user, cat, bridge, true)
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(sctx); err != nil {
			a.logger.Warn("saves still pending at exit", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := a.streams.Out
	m := chat.New(chat.Config{
		Context:  ctx,
		Manager:  manager,
		Bridge:   bridge,
		Theme:    styles.NewTheme(a.cfg.UI.Theme, out),
		Renderer: a.renderer(out),
		Tabs:     tabs,
		Initial:  start,
	})

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(a.streams.In),
		tea.WithOutput(out),
	)
	bridge.Attach(p.Send)

	if dictatePath != "" {
		d := input.NewDictation(dictatePath, input.WithDictationLogger(a.logger))
		go func() {
			err := d.Run(ctx, func(text string) { p.Send(chat.SubmitMsg{Text: text}) })
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("dictation stopped", "path", dictatePath, "err", err)
			}
		}()
	}

	a.logger.Info("starting chat screen", "user", user, "category", initial)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return wrap("tui", "", err)
	}
	return nil
}

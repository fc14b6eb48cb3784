// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mentorbot/internal/config"
	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/input"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/render"
	"github.com/jeranaias/mentorbot/internal/ui/styles"
)

// historyFileName is the line editor history under the config dir.
const historyFileName = "history"

const chatHelp = `Commands:
  /new, /reset   start a new conversation in this category
  /help, /?      show this help
  /quit, /exit   leave the chat
`

func newChatCmd(a *app) *cobra.Command {
	var noSave bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat line by line in the terminal",
		Long: `Chat line by line. Replies are printed block by block as they
stream in, so output works in any terminal or pipe. When stdin is not a
terminal, each input line is one message.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.category(model.CategoryChat)
			if err != nil {
				return err
			}
			return a.runChat(cmd.Context(), cat, !noSave)
		},
	}
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not load or save the conversation")
	return cmd
}

// lineSource picks the line editor for terminals and a plain scanner
// otherwise.
func (a *app) lineSource() input.Source {
	if styles.IsTerminal(a.streams.In) && styles.IsTerminal(a.streams.Out) {
		hist := ""
		if dir, err := config.ConfigDir(); err == nil {
			hist = filepath.Join(dir, historyFileName)
		}
		return input.NewLineReader(hist, a.logger)
	}
	return input.NewScanReader(a.streams.In, a.streams.Out)
}

func (a *app) runChat(ctx context.Context, cat model.Category, save bool) error {
	out := a.streams.Out
	r := a.renderer(out)
	w := render.NewWriter(out, r)

	ctrl, err := a.newController(a.cfg.User(), cat, nil, save)
	if err != nil {
		return wrap("chat", "start", err)
	}
	defer a.drain(ctrl)

	if err := ctrl.Load(ctx); err != nil {
		a.logger.Warn("history load failed", "category", cat, "err", err)
	}
	fmt.Fprintln(out, r.Transcript(ctrl.Current()))

	src := a.lineSource()
	defer src.Close()

	prompt := "> "
	for {
		line, err := src.ReadLine(prompt)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, input.ErrInterrupted):
			return nil
		case err != nil:
			return wrap("chat", "read input", err)
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "/") {
			quit, err := a.chatCommand(ctrl, r, text)
			if err != nil || quit {
				return err
			}
			continue
		}

		fmt.Fprintln(out)
		err = ctrl.SubmitTurn(ctx, text, conversation.WithObserver(w))
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return wrap("chat", "send", err)
		}
		if err := w.Err(); err != nil {
			return wrap("chat", "write", err)
		}
	}
}

// chatCommand runs a slash command and reports whether the chat should end.
func (a *app) chatCommand(ctrl *conversation.Controller, r *render.Renderer, line string) (bool, error) {
	out := a.streams.Out
	name := strings.Fields(line)[0]
	switch strings.ToLower(name) {
	case "/new", "/reset", "/clear":
		if err := ctrl.Reset(); err != nil {
			return false, wrap("chat", "reset", err)
		}
		fmt.Fprintln(out, r.Transcript(ctrl.Current()))
	case "/help", "/?":
		fmt.Fprint(out, chatHelp)
	case "/quit", "/exit", "/q":
		return true, nil
	default:
		fmt.Fprintf(out, "Unknown command %s. Try /help.\n", name)
	}
	return false, nil
}

// drain waits for the controller's pending saves.
func (a *app) drain(ctrl *conversation.Controller) {
	ctrl.Close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ctrl.Wait(ctx); err != nil {
		a.logger.Warn("saves still pending at exit", "category", ctrl.Category(), "err", err)
	}
}

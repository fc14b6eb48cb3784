// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/format"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/render"
	"github.com/jeranaias/mentorbot/internal/ui/styles"
)

// ErrReplyFailed is returned by ask when the stream broke and the reply is
// the failure message.
var ErrReplyFailed = errors.New("the reply could not be completed")

// AskResult is the --json output of ask.
type AskResult struct {
	Category model.Category `json:"category"`
	Phase    string         `json:"phase"`
	Reply    string         `json:"reply"`
	Blocks   []format.Block `json:"blocks"`
}

func newAskCmd(a *app) *cobra.Command {
	var (
		jsonOut bool
		noSave  bool
	)
	cmd := &cobra.Command{
		Use:   "ask [message...]",
		Short: "Send one message and print the reply",
		Long: `Send one message in the selected category and print the reply.
The message is the arguments joined by spaces, or stdin when there are
none. Unless --no-save is given the exchange continues the stored
conversation and is saved with it.`,
		Example: `  mentorbot ask "How do I answer 'tell me about yourself'?"
  mentorbot ask -c resume < draft.txt
  mentorbot ask --json --no-save "Plan my week"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				if styles.IsTerminal(a.streams.In) {
					return usageErrorf("ask needs a message")
				}
				data, err := io.ReadAll(a.streams.In)
				if err != nil {
					return wrap("ask", "read stdin", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return usageErrorf("ask needs a message")
			}

			cat, err := a.category(model.CategoryChat)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			ctrl, err := a.newController(a.cfg.User(), cat, nil, !noSave)
			if err != nil {
				return wrap("ask", "start", err)
			}
			defer a.drain(ctrl)
			if err := ctrl.Load(ctx); err != nil {
				return wrap("ask", "load history", err)
			}

			var opts []conversation.TurnOption
			var w *render.Writer
			if !jsonOut {
				w = render.NewWriter(a.streams.Out, a.renderer(a.streams.Out))
				w.Labels = false
				opts = append(opts, conversation.WithObserver(w))
			}
			if err := ctrl.SubmitTurn(ctx, text, opts...); err != nil {
				return wrap("ask", "send", err)
			}

			u := ctrl.Current()
			last, _ := u.Last()
			if jsonOut {
				res := AskResult{
					Category: cat,
					Phase:    u.Phase.String(),
					Reply:    last.Message.Content,
					Blocks:   last.Blocks,
				}
				if err := NewJSONResponse("ask", res).Print(a.streams.Out); err != nil {
					return err
				}
			} else if err := w.Err(); err != nil {
				return wrap("ask", "write", err)
			}

			if u.Phase == conversation.PhaseFailed {
				return ErrReplyFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the reply and its blocks as JSON")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not load or save the conversation")
	return cmd
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/input"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/render"
)

func newDictateCmd(a *app) *cobra.Command {
	var fromStart bool
	cmd := &cobra.Command{
		Use:   "dictate <transcript-file>",
		Short: "Chat by voice through a speech-to-text transcript file",
		Long: `Follow a transcript file written by a speech recognizer. Each complete
line appended to the file is sent as one message and the reply is printed
below it. The file may not exist yet; it is picked up when created.
Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.category(model.CategoryChat)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			out := a.streams.Out
			r := a.renderer(out)
			w := render.NewWriter(out, r)
			w.EchoUser = true

			ctrl, err := a.newController(a.cfg.User(), cat, nil, true)
			if err != nil {
				return wrap("dictate", "start", err)
			}
			defer a.drain(ctrl)
			if err := ctrl.Load(ctx); err != nil {
				a.logger.Warn("history load failed", "category", cat, "err", err)
			}
			fmt.Fprintln(out, r.Transcript(ctrl.Current()))

			var opts []input.DictationOption
			opts = append(opts, input.WithDictationLogger(a.logger))
			if fromStart {
				opts = append(opts, input.FromStart())
			}
			d := input.NewDictation(args[0], opts...)

			var turnErr error
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-d.Ready():
					fmt.Fprintf(a.streams.Err, "Listening to %s (Ctrl+C to stop)\n", d.Path())
				case <-ctx.Done():
				}
			}()

			err = d.Run(ctx, func(text string) {
				a.logger.Debug("dictated line", "chars", len(text))
				err := ctrl.SubmitTurn(ctx, text, conversation.WithObserver(w))
				if err == nil {
					err = w.Err()
				}
				if err != nil && !errors.Is(err, context.Canceled) {
					turnErr = err
					cancel()
				}
			})
			if err != nil {
				return wrap("dictate", "watch", err)
			}
			return wrap("dictate", "send", turnErr)
		},
	}
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "also send the lines already in the file")
	return cmd
}

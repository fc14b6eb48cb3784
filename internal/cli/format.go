// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mentorbot/internal/format"
)

func newFormatCmd(a *app) *cobra.Command {
	var (
		jsonOut  bool
		markdown bool
	)
	cmd := &cobra.Command{
		Use:   "format [file]",
		Short: "Format reply text the way the chat shows it",
		Long: `Split assistant text into topic headers, list items with tags and
paragraphs, and print the result. Reads the file, or stdin when no file
or "-" is given. Useful for checking how a prompt's output will look.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut && markdown {
				return usageErrorf("--json and --markdown cannot be combined")
			}

			var in io.Reader = a.streams.In
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return wrap("format", "open", err)
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return wrap("format", "read", err)
			}

			blocks := format.Segment(string(data))
			out := a.streams.Out
			switch {
			case jsonOut:
				return NewJSONResponse("format", blocks).Print(out)
			case markdown:
				_, err = fmt.Fprint(out, format.Markdown(blocks))
			default:
				_, err = fmt.Fprintln(out, a.renderer(out).Blocks(blocks))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the blocks as JSON")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the blocks as Markdown")
	return cmd
}

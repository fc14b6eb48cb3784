// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Streams are the standard streams a command uses.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// annotation keys on commands
const (
	// annLogToFile keeps log output off the terminal.
	annLogToFile = "log-to-file"
	// annNoConfig skips loading the config file.
	annNoConfig = "no-config"
)

// NewRootCmd builds the command tree.
func NewRootCmd(streams Streams) *cobra.Command {
	root, _ := newRoot(streams)
	return root
}

func newRoot(streams Streams) (*cobra.Command, *app) {
	a := &app{streams: streams}

	root := &cobra.Command{
		Use:   "mentorbot",
		Short: "Career coaching chat in your terminal",
		Long: `mentorbot is a chat client for the MentorBot assistant.

Each category (interview coaching, wellness journal, resume review,
to-do planning) keeps one conversation, saved after every reply.
Replies are shown as topic headers, bullet lists with tag chips and
paragraphs while they stream in.

Run without a subcommand to open the full-screen chat.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Annotations:   map[string]string{annLogToFile: "true"},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context(), "")
		},
	}
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.mentorbot/config.toml)")
	flags.StringVarP(&a.flags.category, "category", "c", "", "conversation category (chat, mental, resume, todo, ...)")
	flags.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newTUICmd(a),
		newChatCmd(a),
		newAskCmd(a),
		newFormatCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newDictateCmd(a),
		newVersionCmd(),
	)
	return root, a
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, streams Streams) int {
	root, a := newRoot(streams)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when RunE fails.
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		DisplayError(streams.Err, err, false)
		var usage *UsageError
		if isUsage(err, &usage) {
			fmt.Fprintln(streams.Err, "Run 'mentorbot --help' for usage.")
		}
	}
	return ExitCode(err)
}

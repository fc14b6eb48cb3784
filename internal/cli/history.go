// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jeranaias/mentorbot/internal/export"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/storage"
	"github.com/jeranaias/mentorbot/internal/ui/styles"
	"github.com/jeranaias/mentorbot/internal/util"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "List, show, export and delete saved conversations",
	}
	cmd.AddCommand(
		newHistoryListCmd(a),
		newHistoryShowCmd(a),
		newHistoryExportCmd(a),
		newHistoryDeleteCmd(a),
	)
	return cmd
}

// categoryArg returns the category named by args, or the --category flag.
func (a *app) categoryArg(args []string) (model.Category, error) {
	if len(args) == 1 {
		return a.checkCategory(args[0])
	}
	if a.flags.category == "" {
		return "", usageErrorf("name a category, e.g. 'chat'")
	}
	return a.checkCategory(a.flags.category)
}

// title is the display name of cat.
func (a *app) title(cat model.Category) string {
	return a.cfg.Category(string(cat)).Title
}

// load fetches the user's stored conversation for cat.
func (a *app) load(ctx context.Context, cat model.Category) (*storage.Record, error) {
	store, err := a.Store()
	if err != nil {
		return nil, err
	}
	return store.Load(ctx, a.cfg.User(), cat)
}

// =============================================================================
// LIST
// =============================================================================

func newHistoryListCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.Store()
			if err != nil {
				return err
			}
			list, err := store.List(cmd.Context(), a.cfg.User())
			if err != nil {
				return wrap("history", "list", err)
			}
			if list == nil {
				list = []storage.Summary{}
			}
			if jsonOut {
				return NewJSONResponse("history list", list).Print(a.streams.Out)
			}

			out := a.streams.Out
			theme := styles.NewTheme(a.cfg.UI.Theme, out)
			if len(list) == 0 {
				fmt.Fprintln(out, theme.StatusMuted.Render("No saved conversations."))
				return nil
			}
			fmt.Fprintln(out, summaryTable(theme, list))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func summaryTable(theme *styles.Theme, list []storage.Summary) string {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{
			string(s.Category),
			fmt.Sprint(s.MessageCount),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"),
			s.Preview,
		})
	}
	t := table.New().
		Headers("CATEGORY", "MESSAGES", "UPDATED", "FIRST MESSAGE").
		Rows(rows...).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderRow(false).
		BorderColumn(false).
		BorderHeader(false).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.HeaderTitle.Padding(0, 2, 0, 0)
			}
			return theme.NewStyle().Padding(0, 2, 0, 0)
		})
	return t.String()
}

// =============================================================================
// SHOW
// =============================================================================

func newHistoryShowCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show [category]",
		Short: "Print a saved conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.categoryArg(args)
			if err != nil {
				return err
			}
			rec, err := a.load(cmd.Context(), cat)
			if err != nil {
				return wrap("history", "show", err)
			}

			data, err := export.NewMarkdownExporter(&export.Options{Title: a.title(cat)}).Export(rec)
			if err != nil {
				return wrap("history", "show", err)
			}
			md := string(data)
			out := a.streams.Out
			if raw || !styles.IsTerminal(out) || a.cfg.UI.Theme == styles.ThemePlain {
				_, err = fmt.Fprint(out, md)
				return err
			}
			width := min(styles.TerminalWidth(out), 100)
			gr, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(width),
			)
			if err != nil {
				return wrap("history", "show", err)
			}
			rendered, err := gr.Render(md)
			if err != nil {
				a.logger.Debug("markdown render failed", "err", err)
				rendered = md
			}
			_, err = fmt.Fprint(out, rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print Markdown without terminal styling")
	return cmd
}

// =============================================================================
// EXPORT
// =============================================================================

func newHistoryExportCmd(a *app) *cobra.Command {
	var (
		formatName string
		output     string
		htmlTheme  string
	)
	cmd := &cobra.Command{
		Use:   "export [category]",
		Short: "Export a saved conversation as Markdown, JSON or HTML",
		Args:  cobra.MaximumNArgs(1),
		Example: `  mentorbot history export resume -o resume-review.md
  mentorbot history export chat --format json
  mentorbot history export todo --format html -o .`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.categoryArg(args)
			if err != nil {
				return err
			}

			exp, err := export.ForFormat(formatName, &export.Options{
				Title:           a.title(cat),
				IncludeMetadata: true,
				Theme:           htmlTheme,
			})
			if err != nil {
				return &UsageError{Message: err.Error()}
			}
			rec, err := a.load(cmd.Context(), cat)
			if err != nil {
				return wrap("history", "export", err)
			}
			data, err := exp.Export(rec)
			if err != nil {
				return wrap("history", "export", err)
			}

			if output == "." {
				output = export.Filename(rec, exp)
			}
			if output == "" || output == "-" {
				_, err = a.streams.Out.Write(data)
				return err
			}
			if err := util.AtomicWriteFile(util.ExpandHome(output), data, 0600); err != nil {
				return wrap("history", "export", err)
			}
			fmt.Fprintf(a.streams.Err, "Exported %s to %s\n", cat, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", export.FormatMarkdown, "export format: md, json or html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout (\".\" picks a name)")
	cmd.Flags().StringVar(&htmlTheme, "theme", "dark", "HTML color theme: dark or light")
	return cmd
}

// =============================================================================
// DELETE
// =============================================================================

func newHistoryDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete [category]",
		Aliases: []string{"rm"},
		Short:   "Delete a saved conversation",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.categoryArg(args)
			if err != nil {
				return err
			}
			if !yes {
				if !styles.IsTerminal(a.streams.In) {
					return usageErrorf("refusing to delete without --yes when stdin is not a terminal")
				}
				if !a.confirm(fmt.Sprintf("Delete the saved %s conversation?", cat)) {
					fmt.Fprintln(a.streams.Out, "Cancelled.")
					return nil
				}
			}

			store, err := a.Store()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := store.Delete(ctx, a.cfg.User(), cat); err != nil {
				return wrap("history", "delete", err)
			}
			fmt.Fprintf(a.streams.Out, "Deleted %s.\n", cat)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question and defaults to no.
func (a *app) confirm(question string) bool {
	fmt.Fprintf(a.streams.Out, "%s [y/N] ", question)
	line, err := bufio.NewReader(a.streams.In).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

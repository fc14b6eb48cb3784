// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/format"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/ui/styles"
	"github.com/jeranaias/mentorbot/internal/util"
)

// Options tunes a Renderer.
type Options struct {
	// Width wraps paragraphs and moves tag chips to their own line when a
	// list item would not fit. Zero disables both.
	Width int
	// Icons prefixes topic headers with a topic glyph.
	Icons bool
	// ShowTags renders list item tags as chips.
	ShowTags bool
	// Highlight runs inline code through chroma.
	Highlight bool
}

// DefaultOptions enables every decoration at the given width.
func DefaultOptions(width int) Options {
	return Options{Width: width, Icons: true, ShowTags: true, Highlight: true}
}

// Renderer renders blocks with a theme. It holds no mutable state and is
// safe for concurrent use.
type Renderer struct {
	theme *styles.Theme
	opts  Options
}

// New creates a Renderer.
func New(theme *styles.Theme, opts Options) *Renderer {
	return &Renderer{theme: theme, opts: opts}
}

// Theme returns the renderer's theme.
func (r *Renderer) Theme() *styles.Theme {
	return r.theme
}

// WithWidth returns a copy rendering at width.
func (r *Renderer) WithWidth(width int) *Renderer {
	opts := r.opts
	opts.Width = width
	return &Renderer{theme: r.theme, opts: opts}
}

// style applies s unless the theme is plain, in which case text is returned
// untouched so piped output carries no escape sequences.
func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.theme.Plain {
		return text
	}
	return s.Render(text)
}

// =============================================================================
// BLOCKS
// =============================================================================

// Blocks renders each block on its own line.
func (r *Renderer) Blocks(blocks []format.Block) string {
	lines := make([]string, len(blocks))
	for i, b := range blocks {
		lines[i] = r.Block(b)
	}
	return strings.Join(lines, "\n")
}

// Block renders one block.
func (r *Renderer) Block(b format.Block) string {
	switch b.Kind {
	case format.BlockTopicHeader:
		return r.header(b.Title)
	case format.BlockListItem:
		return r.listItem(b)
	default:
		return r.wrap(r.Inline(b.Segments), 0)
	}
}

func (r *Renderer) header(title string) string {
	prefix := ""
	if r.opts.Icons {
		prefix = format.TopicIcon(title).Glyph + " "
	}
	if r.opts.Width > 0 {
		title = util.TruncateWidth(title, r.opts.Width-runewidth.StringWidth(prefix))
	}
	if r.theme.Plain {
		return prefix + title
	}
	return r.theme.Bullet.Render(prefix) + r.theme.TopicHeader.Render(title)
}

func (r *Renderer) listItem(b format.Block) string {
	const bullet = "• "
	const indent = "  "

	main := r.style(r.theme.Bullet, bullet) + r.Inline(b.Segments)
	if !r.opts.ShowTags || len(b.Tags) == 0 {
		return r.wrap(main, len(indent))
	}

	chips := make([]string, len(b.Tags))
	chipWidth := 0
	for i, tag := range b.Tags {
		chips[i] = r.chip(tag)
		chipWidth += runewidth.StringWidth(tag) + 2
	}
	chipWidth += len(chips) - 1
	chipLine := strings.Join(chips, " ")

	mainWidth := runewidth.StringWidth(bullet) + runewidth.StringWidth(format.Plain(b.Segments))
	if r.opts.Width <= 0 || mainWidth+1+chipWidth <= r.opts.Width {
		return main + " " + chipLine
	}
	return r.wrap(main, len(indent)) + "\n" + indent + chipLine
}

// chip renders a tag. Plain output brackets it; styled output pads it.
// Both take the tag's display width plus two columns.
func (r *Renderer) chip(tag string) string {
	if r.theme.Plain {
		return "[" + tag + "]"
	}
	return r.theme.TagChip.Render(tag)
}

// wrap word-wraps s to the configured width, indenting continuation lines.
func (r *Renderer) wrap(s string, indent int) string {
	if r.opts.Width <= 0 || lipgloss.Width(s) <= r.opts.Width {
		return s
	}
	wrapped := lipgloss.NewStyle().Width(r.opts.Width - indent).Render(s)
	lines := strings.Split(wrapped, "\n")
	pad := strings.Repeat(" ", indent)
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
		if i > 0 {
			lines[i] = pad + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// INLINE
// =============================================================================

// Inline renders inline segments.
func (r *Renderer) Inline(segs []format.InlineSegment) string {
	var b strings.Builder
	for _, s := range segs {
		switch s.Kind {
		case format.SegmentBold:
			b.WriteString(r.style(r.theme.Bold, s.Text))
		case format.SegmentCode:
			b.WriteString(r.code(s.Text))
		case format.SegmentLink:
			b.WriteString(r.style(r.theme.Link, s.Text))
		default:
			b.WriteString(r.style(r.theme.Paragraph, s.Text))
		}
	}
	return b.String()
}

func (r *Renderer) code(text string) string {
	if r.theme.Plain {
		return "`" + text + "`"
	}
	if r.opts.Highlight {
		if hl, ok := highlightCode(text); ok {
			return hl
		}
	}
	return r.theme.Code.Render(text)
}

// highlightCode applies syntax highlighting using the chroma library. It
// reports false when no lexer recognizes the text, so prose in backticks
// keeps the plain code style.
func highlightCode(code string) (string, bool) {
	lexer := lexers.Analyse(code)
	if lexer == nil {
		return "", false
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", false
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", false
	}
	return strings.TrimRight(buf.String(), "\n"), true
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// Label renders the speaker line of a message.
func (r *Renderer) Label(role model.Role) string {
	name := role.DisplayName()
	if r.theme.Plain {
		return name + ":"
	}
	if role == model.RoleUser {
		return r.theme.UserLabel.Render(name)
	}
	return r.theme.AssistantLabel.Render(name)
}

// Entry renders one message with its label. User content is shown
// literally; other messages use their blocks.
func (r *Renderer) Entry(e conversation.Entry) string {
	var body string
	switch {
	case e.Message.Role == model.RoleUser:
		body = r.wrap(e.Message.Content, 0)
	case e.Message.Content == "":
		body = r.style(r.theme.StatusMuted, "…")
	default:
		body = r.Blocks(e.Blocks)
	}
	return r.Label(e.Message.Role) + "\n" + body
}

// Transcript renders every entry of an update separated by blank lines.
// A failed turn's last entry carries the error indicator.
func (r *Renderer) Transcript(u conversation.Update) string {
	parts := make([]string, len(u.Entries))
	for i, e := range u.Entries {
		parts[i] = r.Entry(e)
	}
	if u.Phase == conversation.PhaseFailed && len(parts) > 0 {
		last := len(parts) - 1
		parts[last] = r.style(r.theme.StatusError, styles.StatusIndicators.Error) + " " + parts[last]
	}
	return strings.Join(parts, "\n\n")
}

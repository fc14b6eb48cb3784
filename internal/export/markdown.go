// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/mentorbot/internal/format"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown. Assistant replies are
// normalized through the block formatter so headers, lists and tags come
// out as real Markdown structure.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(rec *storage.Record) ([]byte, error) {
	if err := validate(rec); err != nil {
		return nil, err
	}
	title := e.options.title(rec)

	var sb strings.Builder
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title))
		fmt.Fprintf(&sb, "category: %s\n", rec.Category)
		if !rec.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "date: %s\n", rec.CreatedAt.Format(time.RFC3339))
		}
		if !rec.UpdatedAt.IsZero() {
			fmt.Fprintf(&sb, "updated: %s\n", rec.UpdatedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(rec.Messages))
		sb.WriteString("generator: mentorbot\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString("# " + escapeMarkdown(title) + "\n\n")
	if !rec.UpdatedAt.IsZero() {
		sb.WriteString("_Updated " + formatTimestamp(rec.UpdatedAt) + "_\n\n")
	}
	sb.WriteString("---\n\n")

	for _, msg := range rec.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "**\n\n")
		sb.WriteString(messageMarkdown(msg))
		sb.WriteString("\n\n---\n\n")
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func messageMarkdown(msg model.WireMessage) string {
	if msg.Role == model.RoleUser {
		return msg.Content
	}
	return format.Markdown(format.Segment(msg.Content))
}

// escapeMarkdown escapes characters that would start Markdown syntax in a
// heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`)
	return r.Replace(s)
}

// escapeYAML quotes s when it holds characters with YAML meaning.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#'\"{}[],&*!|>%@`\n") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

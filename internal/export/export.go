// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/mentorbot/internal/storage"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(rec *storage.Record) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// ErrEmpty is returned when a conversation has no messages to export.
var ErrEmpty = errors.New("conversation has no messages")

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// Title heads the document. Defaults to the category name.
	Title string

	// IncludeMetadata adds front matter (Markdown) or a metadata header
	// (HTML) with the category, dates and message count.
	IncludeMetadata bool

	// Theme for HTML export ("light" or "dark").
	// Default: "dark"
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		Theme:           "dark",
	}
}

func (o *Options) title(rec *storage.Record) string {
	if o.Title != "" {
		return o.Title
	}
	return string(rec.Category)
}

// =============================================================================
// FORMAT SELECTION
// =============================================================================

// Format names accepted by ForFormat.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatHTML     = "html"
)

// Formats lists the accepted format names.
func Formats() []string {
	return []string{FormatMarkdown, FormatJSON, FormatHTML}
}

// ForFormat returns the exporter for name. "markdown" is accepted for md.
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(name) {
	case FormatMarkdown, "markdown":
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case FormatHTML, "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (use %s)", name, strings.Join(Formats(), ", "))
	}
}

// Filename suggests a file name for rec exported with exp.
func Filename(rec *storage.Record, exp Exporter) string {
	stamp := rec.UpdatedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	return fmt.Sprintf("mentorbot_%s_%s%s",
		sanitizeFilename(string(rec.Category)),
		stamp.Local().Format("20060102_150405"),
		exp.FileExtension(),
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func validate(rec *storage.Record) error {
	if rec == nil {
		return errors.New("conversation is nil")
	}
	if len(rec.Messages) == 0 {
		return ErrEmpty
	}
	return nil
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

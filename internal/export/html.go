// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jeranaias/mentorbot/internal/format"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page with
// embedded CSS.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(rec *storage.Record) ([]byte, error) {
	if err := validate(rec); err != nil {
		return nil, err
	}
	title := html.EscapeString(e.options.title(rec))
	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", title)
	sb.WriteString("    <meta name=\"generator\" content=\"mentorbot\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", title)
	if e.options.IncludeMetadata {
		sb.WriteString("            <div class=\"metadata\">\n")
		fmt.Fprintf(&sb, "                <span><strong>Category:</strong> %s</span>\n", html.EscapeString(string(rec.Category)))
		if !rec.UpdatedAt.IsZero() {
			fmt.Fprintf(&sb, "                <span><strong>Updated:</strong> %s</span>\n", formatTimestamp(rec.UpdatedAt))
		}
		fmt.Fprintf(&sb, "                <span><strong>Messages:</strong> %d</span>\n", len(rec.Messages))
		sb.WriteString("            </div>\n")
	}
	sb.WriteString("        </header>\n")

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range rec.Messages {
		e.renderMessage(&sb, msg)
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>MentorBot</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderMessage(sb *strings.Builder, msg model.WireMessage) {
	fmt.Fprintf(sb, "            <div class=\"message %s-message\">\n", html.EscapeString(string(msg.Role)))
	fmt.Fprintf(sb, "                <div class=\"role-label\">%s</div>\n", html.EscapeString(msg.Role.DisplayName()))
	sb.WriteString("                <div class=\"message-content\">\n")
	if msg.Role == model.RoleUser {
		text := html.EscapeString(msg.Content)
		fmt.Fprintf(sb, "<p>%s</p>\n", strings.ReplaceAll(text, "\n", "<br>\n"))
	} else {
		sb.WriteString(blocksHTML(format.Segment(msg.Content)))
	}
	sb.WriteString("                </div>\n")
	sb.WriteString("            </div>\n")
}

// blocksHTML renders blocks as headings, lists with tag chips and
// paragraphs. Consecutive list items share one <ul>.
func blocksHTML(blocks []format.Block) string {
	var sb strings.Builder
	inList := false
	for _, b := range blocks {
		if b.Kind != format.BlockListItem && inList {
			sb.WriteString("</ul>\n")
			inList = false
		}
		switch b.Kind {
		case format.BlockTopicHeader:
			icon := format.TopicIcon(b.Title)
			fmt.Fprintf(&sb, "<h3 class=\"topic topic-%s\"><span class=\"icon\">%s</span> %s</h3>\n",
				icon.Name, html.EscapeString(icon.Glyph), html.EscapeString(b.Title))
		case format.BlockListItem:
			if !inList {
				sb.WriteString("<ul>\n")
				inList = true
			}
			sb.WriteString("<li>")
			sb.WriteString(inlineHTML(b.Segments))
			for _, tag := range b.Tags {
				fmt.Fprintf(&sb, " <span class=\"tag\">%s</span>", html.EscapeString(tag))
			}
			sb.WriteString("</li>\n")
		default:
			fmt.Fprintf(&sb, "<p>%s</p>\n", inlineHTML(b.Segments))
		}
	}
	if inList {
		sb.WriteString("</ul>\n")
	}
	return sb.String()
}

func inlineHTML(segs []format.InlineSegment) string {
	var sb strings.Builder
	for _, s := range segs {
		text := html.EscapeString(s.Text)
		switch s.Kind {
		case format.SegmentBold:
			sb.WriteString("<strong>" + text + "</strong>")
		case format.SegmentCode:
			sb.WriteString("<code class=\"inline-code\">" + text + "</code>")
		case format.SegmentLink:
			fmt.Fprintf(&sb, "<a href=\"%s\" rel=\"noopener noreferrer\">%s</a>", text, text)
		default:
			sb.WriteString(text)
		}
	}
	return sb.String()
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-secondary: #a9b1d6;
            --user-bg: #1f2335;
            --accent-blue: #7aa2f7;
            --accent-purple: #bb9af7;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-secondary: #586069;
            --user-bg: #f6f8fa;
            --accent-blue: #0366d6;
            --accent-purple: #6f42c1;
        }

        body {
            font-family: var(--font-sans);
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; overflow: hidden; }
        .header { padding: 32px; background: var(--bg-tertiary); }
        .header h1 { font-size: 28px; margin-bottom: 12px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; color: var(--text-secondary); }
        .conversation { padding: 24px 32px; }
        .message { margin-bottom: 24px; padding: 16px 20px; border-radius: 8px; }
        .user-message { background: var(--user-bg); border-left: 4px solid var(--accent-blue); }
        .assistant-message, .system-message { border-left: 4px solid var(--accent-purple); }
        .role-label { font-weight: 700; font-size: 14px; margin-bottom: 8px; color: var(--text-secondary); }
        .message-content p { margin-bottom: 8px; }
        .message-content ul { margin: 0 0 8px 20px; }
        .topic { font-size: 17px; margin: 12px 0 6px; color: var(--accent-blue); }
        .tag { display: inline-block; font-size: 12px; padding: 0 8px; margin-left: 4px; border-radius: 10px; background: var(--bg-tertiary); }
        .inline-code { font-family: var(--font-mono); font-size: 14px; padding: 1px 4px; border-radius: 4px; background: var(--bg-primary); }
        a { color: var(--accent-blue); }
        .footer { padding: 16px 32px; font-size: 13px; color: var(--text-secondary); }
    </style>
`

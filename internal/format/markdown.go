// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import "strings"

// Markdown writes blocks back out as CommonMark for export and for the
// glamour history viewer. Headers become level-3 headings and tags become
// inline code chips after the item text.
func Markdown(blocks []Block) string {
	var b strings.Builder
	for i, blk := range blocks {
		if i > 0 {
			b.WriteString("\n")
			// Consecutive list items stay in one list.
			if !(blk.Kind == BlockListItem && blocks[i-1].Kind == BlockListItem) {
				b.WriteString("\n")
			}
		}
		switch blk.Kind {
		case BlockTopicHeader:
			b.WriteString("### ")
			b.WriteString(blk.Title)
		case BlockListItem:
			b.WriteString("- ")
			writeInlineMarkdown(&b, blk.Segments)
			for _, tag := range blk.Tags {
				b.WriteString(" `")
				b.WriteString(tag)
				b.WriteString("`")
			}
		default:
			writeInlineMarkdown(&b, blk.Segments)
		}
	}
	return b.String()
}

func writeInlineMarkdown(b *strings.Builder, segs []InlineSegment) {
	for _, s := range segs {
		switch s.Kind {
		case SegmentBold:
			b.WriteString("**" + s.Text + "**")
		case SegmentCode:
			b.WriteString("`" + s.Text + "`")
		case SegmentLink:
			b.WriteString("<" + s.Text + ">")
		default:
			b.WriteString(s.Text)
		}
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"regexp"
	"strings"
)

var (
	lineBreaks = regexp.MustCompile(`\n+`)

	// A bullet or "12." followed by whitespace. "1.5x" does not match.
	listMarker = regexp.MustCompile(`^\s*(?:[*+•-]|\d+\.)\s+`)

	// The first hyphen with whitespace on both sides starts the tag list.
	tagSeparator = regexp.MustCompile(`\s+-\s+`)
)

const (
	boldMarker        = "**"
	headerSuffix      = ":**"
	minHeaderLen      = len(boldMarker) + len(headerSuffix)
	listTrailingColon = ":"
)

// Segment splits text into blocks, one per non-empty line, in source order.
func Segment(text string) []Block {
	lines := lineBreaks.Split(text, -1)
	blocks := make([]Block, 0, len(lines))
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		blocks = append(blocks, classify(line))
	}
	return blocks
}

// classify applies the header, list item, paragraph rules in that order.
func classify(line string) Block {
	if isHeader(line) {
		return Block{
			Kind:  BlockTopicHeader,
			Title: strings.TrimSpace(line[len(boldMarker) : len(line)-len(headerSuffix)]),
		}
	}

	if loc := listMarker.FindStringIndex(line); loc != nil {
		return listItem(line[loc[1]:])
	}

	return Block{Kind: BlockParagraph, Segments: Tokenize(line)}
}

func isHeader(line string) bool {
	return len(line) >= minHeaderLen &&
		strings.HasPrefix(line, boldMarker) &&
		strings.HasSuffix(line, headerSuffix)
}

// listItem builds a ListItem from the text after the bullet marker.
func listItem(rest string) Block {
	rest = strings.TrimPrefix(rest, boldMarker)
	if strings.HasSuffix(rest, headerSuffix) {
		rest = rest[:len(rest)-len(headerSuffix)] + listTrailingColon
	}

	main := rest
	var tags []string
	if loc := tagSeparator.FindStringIndex(rest); loc != nil {
		main = rest[:loc[0]]
		tags = splitTags(rest[loc[1]:])
	}

	return Block{
		Kind:     BlockListItem,
		Segments: Tokenize(strings.TrimSpace(main)),
		Tags:     tags,
	}
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// SettledCount returns how many leading blocks of Segment(text), which has n
// blocks, are final: appending more text cannot change them. Only the block
// on an unterminated last line is still open.
func SettledCount(text string, n int) int {
	if n == 0 {
		return 0
	}
	tail := text
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		tail = text[i+1:]
	}
	if strings.TrimSpace(tail) == "" {
		return n
	}
	return n - 1
}

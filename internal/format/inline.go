// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`https?://\S+`)

// Tokenize splits one line into inline segments, scanning left to right.
//
// "**text**" becomes Bold and "`text`" becomes Code, each with a non-empty
// body; a bold body never contains '*' and a code body never contains '`'.
// A marker with no partner stays literal and starts a new PlainText run, so
// "a **b" yields ["a ", "**b"]. URLs in plain runs become Link segments and
// run to the next whitespace, markers included.
// Tokenize never fails.
func Tokenize(line string) []InlineSegment {
	var segs []InlineSegment
	start := 0
	for i := 0; i < len(line); {
		c := line[i]
		if c == 'h' && (strings.HasPrefix(line[i:], "http://") || strings.HasPrefix(line[i:], "https://")) {
			// Markers inside a URL belong to it.
			i += linkPattern.FindStringIndex(line[i:])[1]
			continue
		}
		if c != '*' && c != '`' {
			i++
			continue
		}

		if end, ok := matchSpan(line, i); ok {
			segs = appendPlain(segs, line[start:i])
			kind, width := SegmentBold, len(boldMarker)
			if c == '`' {
				kind, width = SegmentCode, 1
			}
			segs = append(segs, InlineSegment{Kind: kind, Text: line[i+width : end-width]})
			i, start = end, end
			continue
		}

		// An unmatched marker run begins a literal run of its own.
		if isMarkerStart(line, i) && (i == 0 || line[i-1] != c) {
			segs = appendPlain(segs, line[start:i])
			start = i
		}
		i++
	}
	return appendPlain(segs, line[start:])
}

// matchSpan reports the end offset of a bold or code span opening at i.
func matchSpan(line string, i int) (int, bool) {
	switch {
	case strings.HasPrefix(line[i:], boldMarker):
		body := i + len(boldMarker)
		k := strings.IndexByte(line[body:], '*')
		if k <= 0 {
			return 0, false
		}
		closeAt := body + k
		if !strings.HasPrefix(line[closeAt:], boldMarker) {
			return 0, false
		}
		return closeAt + len(boldMarker), true
	case line[i] == '`':
		k := strings.IndexByte(line[i+1:], '`')
		if k <= 0 {
			return 0, false
		}
		return i + 1 + k + 1, true
	}
	return 0, false
}

func isMarkerStart(line string, i int) bool {
	return line[i] == '`' || strings.HasPrefix(line[i:], boldMarker)
}

// appendPlain adds text as PlainText and Link segments. Empty text adds
// nothing.
func appendPlain(segs []InlineSegment, text string) []InlineSegment {
	if text == "" {
		return segs
	}
	pos := 0
	for _, loc := range linkPattern.FindAllStringIndex(text, -1) {
		if loc[0] > pos {
			segs = append(segs, InlineSegment{Kind: SegmentPlain, Text: text[pos:loc[0]]})
		}
		segs = append(segs, InlineSegment{Kind: SegmentLink, Text: text[loc[0]:loc[1]]})
		pos = loc[1]
	}
	if pos < len(text) {
		segs = append(segs, InlineSegment{Kind: SegmentPlain, Text: text[pos:]})
	}
	return segs
}

// Plain concatenates segment text, the inverse of Tokenize minus the
// consumed markers.
func Plain(segs []InlineSegment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

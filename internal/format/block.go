// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"fmt"
	"slices"
)

// =============================================================================
// BLOCK KINDS
// =============================================================================

// BlockKind tags a Block variant.
type BlockKind int

const (
	BlockTopicHeader BlockKind = iota + 1
	BlockListItem
	BlockParagraph
)

var blockKindNames = map[BlockKind]string{
	BlockTopicHeader: "topic_header",
	BlockListItem:    "list_item",
	BlockParagraph:   "paragraph",
}

// String returns the wire name of the kind.
func (k BlockKind) String() string {
	if name, ok := blockKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("BlockKind(%d)", int(k))
}

// MarshalText encodes the kind as its wire name.
func (k BlockKind) MarshalText() ([]byte, error) {
	if _, ok := blockKindNames[k]; !ok {
		return nil, fmt.Errorf("unknown block kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a wire name.
func (k *BlockKind) UnmarshalText(b []byte) error {
	for kind, name := range blockKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown block kind %q", b)
}

// =============================================================================
// SEGMENT KINDS
// =============================================================================

// SegmentKind tags an InlineSegment variant.
type SegmentKind int

const (
	SegmentPlain SegmentKind = iota + 1
	SegmentBold
	SegmentCode
	SegmentLink
)

var segmentKindNames = map[SegmentKind]string{
	SegmentPlain: "text",
	SegmentBold:  "bold",
	SegmentCode:  "code",
	SegmentLink:  "link",
}

// String returns the wire name of the kind.
func (k SegmentKind) String() string {
	if name, ok := segmentKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SegmentKind(%d)", int(k))
}

// MarshalText encodes the kind as its wire name.
func (k SegmentKind) MarshalText() ([]byte, error) {
	if _, ok := segmentKindNames[k]; !ok {
		return nil, fmt.Errorf("unknown segment kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a wire name.
func (k *SegmentKind) UnmarshalText(b []byte) error {
	for kind, name := range segmentKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown segment kind %q", b)
}

// =============================================================================
// VALUES
// =============================================================================

// InlineSegment is a run of inline text. Markers are already stripped from
// Text. For SegmentLink, Text is the URL.
type InlineSegment struct {
	Kind SegmentKind `json:"kind"`
	Text string      `json:"text"`
}

// URL returns the link target, or "" for non-link segments.
func (s InlineSegment) URL() string {
	if s.Kind != SegmentLink {
		return ""
	}
	return s.Text
}

// Block is one renderable line.
//
//   - BlockTopicHeader uses Title.
//   - BlockListItem uses Segments for the main text and Tags.
//   - BlockParagraph uses Segments.
type Block struct {
	Kind     BlockKind       `json:"kind"`
	Title    string          `json:"title,omitempty"`
	Segments []InlineSegment `json:"segments,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
}

// Equal reports whether two blocks have the same kind and content.
func (b Block) Equal(o Block) bool {
	return b.Kind == o.Kind &&
		b.Title == o.Title &&
		slices.Equal(b.Segments, o.Segments) &&
		slices.Equal(b.Tags, o.Tags)
}

// Text returns the visible text of the block with markers stripped.
func (b Block) Text() string {
	if b.Kind == BlockTopicHeader {
		return b.Title
	}
	return Plain(b.Segments)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import "strings"

// Icon is a terminal glyph for a topic header.
type Icon struct {
	Name  string
	Glyph string
}

var (
	IconArrays        = Icon{Name: "arrays", Glyph: "≡"}
	IconTwoPointers   = Icon{Name: "two-pointers", Glyph: "⇄"}
	IconSlidingWindow = Icon{Name: "sliding-window", Glyph: "◫"}
	IconLinkedLists   = Icon{Name: "linked-lists", Glyph: "⛓"}
	IconTrees         = Icon{Name: "trees", Glyph: "⋔"}
	IconBacktracking  = Icon{Name: "backtracking", Glyph: "↺"}
	IconDynamic       = Icon{Name: "dynamic-programming", Glyph: "↗"}
	IconDefault       = Icon{Name: "topic", Glyph: "◆"}
)

// topicIcons is checked in order; the first keyword found in the lowercased
// title wins.
var topicIcons = []struct {
	keywords []string
	icon     Icon
}{
	{[]string{"array", "hash"}, IconArrays},
	{[]string{"two pointer"}, IconTwoPointers},
	{[]string{"sliding window"}, IconSlidingWindow},
	{[]string{"linked list"}, IconLinkedLists},
	{[]string{"tree"}, IconTrees},
	{[]string{"backtracking"}, IconBacktracking},
	{[]string{"dynamic programming", "dp"}, IconDynamic},
}

// TopicIcon picks the icon for a header title from common problem-solving
// topic names.
func TopicIcon(title string) Icon {
	t := strings.ToLower(title)
	for _, entry := range topicIcons {
		for _, kw := range entry.keywords {
			if strings.Contains(t, kw) {
				return entry.icon
			}
		}
	}
	return IconDefault
}

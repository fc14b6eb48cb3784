// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package format turns free-form assistant text into renderable blocks.
//
// Segment splits text into lines and classifies each one, in priority order,
// as a TopicHeader ("**Arrays:**"), a ListItem ("* Two Sum - Arrays,
// Hashing", with the text after " - " kept as tags) or a Paragraph. Tokenize
// splits a line into PlainText, Bold, Code and Link segments.
//
// Both functions are pure and total: any input, including half-streamed
// text with unterminated markers, produces a result, and the same input
// always produces the same result. They are cheap enough to rerun on every
// stream snapshot. As text grows, only the last block of the previous result
// can change; SettledCount reports how many blocks are final.
package format

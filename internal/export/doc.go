// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes stored conversations as Markdown, JSON or HTML.
//
// Assistant replies go through the block formatter first, so topic
// headers, list items with tags and paragraphs keep their structure in
// every format.
//
// # Usage
//
//	exp, err := export.ForFormat("html", &export.Options{Title: "Resume Review"})
//	if err != nil {
//	    return err
//	}
//	data, err := exp.Export(record)
package export

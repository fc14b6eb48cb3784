// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package inference provides the clients that send a conversation to a
// model backend and return the reply as a stream.ChunkSource.
//
// Two backends are supported:
//
//   - PortalClient talks to the assistant portal's POST /api/chat, which
//     streams the reply as raw text.
//   - OllamaClient talks to a local Ollama server's NDJSON chat API.
//
// Both share Config, the ClientError taxonomy and an optional request rate
// limiter. Timeouts are handled here: the core only sees a failed stream.
package inference

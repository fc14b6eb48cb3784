// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes conversations over HTTP for the web front end.
//
// # Endpoints
//
//   - POST   /api/format                            - segment text into blocks
//   - GET    /api/conversations                     - list stored conversations
//   - GET    /api/users/conversation/{category}     - load one conversation
//   - POST   /api/users/conversation                - upsert a conversation
//   - DELETE /api/conversations/{category}          - delete a conversation
//   - POST   /api/conversations/{category}/turns    - run a turn, NDJSON updates
//   - POST   /api/chat                              - raw streaming proxy
//   - GET    /health                                - health check
//
// Requests act for the user named in the X-MentorBot-User header, or for
// the server's default user when the header is absent.
//
// # Middleware
//
// Recovery, request IDs, request logging, CORS, an optional bearer token
// and per-client rate limiting, applied in that order.
//
// # Usage
//
//	srv := server.New(server.Options{
//		Addr:        "127.0.0.1:8080",
//		Store:       store,
//		Backend:     backend,
//		Controllers: factory,
//	})
//	err := srv.ListenAndServe(ctx)
package server

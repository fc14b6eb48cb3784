// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the mentorbot command tree.
//
// Commands:
//
//	mentorbot [tui]             full-screen chat
//	mentorbot chat              line-mode chat with input history
//	mentorbot ask <text>        one turn, streamed to stdout
//	mentorbot format [file]     segment a reply into blocks
//	mentorbot history ...       list, show, export and delete conversations
//	mentorbot serve             HTTP API for the web front end
//	mentorbot config ...        show, init and locate the config file
//	mentorbot dictate <file>    submit lines appended to a transcript
//	mentorbot version           print version information
//
// Every command accepts --config, --category and --log-level.
package cli

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for mentorbot.
//
// Configuration is a single TOML file with sensible defaults, environment
// variable overrides and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (MENTORBOT_*)
//   - ~/.mentorbot/config.toml (or the path given with --config)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	backend, err := inference.New(cfg.InferenceConfig())
//
// Category sections configure per-view greetings and system prompts:
//
//	[categories.chat]
//	title = "Interview Coach"
//	system_prompt = "You are an interview coach..."
package config

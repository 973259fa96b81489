// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves llmchat settings.
//
// Settings are stored as TOML in $XDG_CONFIG_HOME/cli-llm-chat/config.toml
// (or ~/.config/cli-llm-chat/config.toml) with 0600 permissions.
//
// # Configuration Precedence
//
// Each field is resolved independently, highest first:
//   - Command-line flags
//   - Environment variables (OPENROUTER_API_KEY, DEFAULT_MODEL,
//     RESPONSE_VERBOSITY), optionally loaded from a .env file
//   - The settings file
//   - An interactive prompt (API key only)
//
// # Usage
//
//	store, _ := config.DefaultStore(logger)
//	settings, err := config.Resolve(config.Sources{Store: store})
//	if errors.Is(err, config.ErrConfigMissing) {
//	    // ask the user to run config-set
//	}
package config

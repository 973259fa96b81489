// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the llmchat command tree and terminal presentation.
//
// Interactive terminals get markdown-rendered replies, colors, line editing
// with history and hidden API-key prompts. Piped input and output fall back
// to plain text and never prompt.
//
// # Key Types
//
//   - App: Process-level dependencies (stdio, config dir, endpoint override)
//   - Renderer: Presents replies and command output for the chat loop
//   - UsageError, CommandError: Errors that map to specific exit codes
//
// # Usage
//
//	app := cli.NewApp()
//	err := cli.NewRootCommand(app).Execute()
//	if err != nil {
//	    cli.DisplayError(os.Stderr, err)
//	}
//	os.Exit(cli.ExitCode(err))
//
// # Commands Overview
//
//   - (none), chat: Interactive chat, or one exchange with --message
//   - config-set: Save API key, default model and verbosity
//   - models: List available models grouped by provider
//   - test-model: Probe a model with one message
//   - doctor: Check configuration and connectivity
//   - conversations: List, show or delete saved conversations
package cli

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the interactive chat loop.
//
// The loop has two states: waiting for input and processing it. Plain text
// is sent to the model together with the whole transcript; lines starting
// with "/" are looked up in a dispatch table of slash commands. Handlers
// take the current conversation and return the next one plus an Output for
// the Renderer, so a failed command leaves the conversation untouched.
//
// Commands:
//
//	/help            Show available commands
//	/exit, /quit, /q Exit the chat
//	/clear           Clear conversation history
//	/save <name>     Save the conversation under a name
//	/load <name>     Load a saved conversation
//	/list            List saved conversations
//	/delete <name>   Delete a saved conversation
//	/model [id]      Show or switch the model
//	/history         Show the conversation so far
//	/verbosity <lvl> Set reply length (also /vs, /vm, /vl)
package session

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"

	"github.com/cli-llm-chat/llmchat/internal/model"
)

// ErrInterrupted is returned by a LineReader when the user presses Ctrl+C
// at the prompt.
var ErrInterrupted = errors.New("interrupted")

// Kind selects how a Renderer presents an Output.
type Kind int

const (
	KindNone Kind = iota
	KindInfo
	KindSuccess
	KindWarning
	KindError
	KindList
	KindHelp
	KindHistory
)

// Output is what a command handler wants shown. Handlers never write to the
// terminal themselves.
type Output struct {
	Kind Kind
	Text string

	// Items backs KindList.
	Items []string
	// Current marks the active entry in Items, if any.
	Current string

	// Messages backs KindHistory.
	Messages []model.Message

	// Help backs KindHelp.
	Help []HelpEntry

	// Err carries the underlying error for KindError.
	Err error

	// Exit ends the loop after rendering.
	Exit bool
}

// HelpEntry is one row of the /help table.
type HelpEntry struct {
	Usage       string
	Aliases     []string
	Description string
}

func info(text string) Output    { return Output{Kind: KindInfo, Text: text} }
func success(text string) Output { return Output{Kind: KindSuccess, Text: text} }
func warning(text string) Output { return Output{Kind: KindWarning, Text: text} }

func failure(text string, err error) Output {
	return Output{Kind: KindError, Text: text, Err: err}
}

// UsageError reports a slash command invoked with bad arguments.
type UsageError struct {
	Command string
	Usage   string
	Message string
}

func (e *UsageError) Error() string {
	msg := "usage: " + e.Usage
	if e.Message != "" {
		msg = e.Command + ": " + e.Message + " (" + msg + ")"
	}
	return msg
}

func usage(cmd *Command, message string) Output {
	err := &UsageError{Command: cmd.Name, Usage: cmd.Usage, Message: message}
	return failure(err.Error(), err)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for llmchat.
//
// Commands always return errors; main decides how to display them and
// which exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cli-llm-chat/llmchat/internal/cloud"
	"github.com/cli-llm-chat/llmchat/internal/config"
	"github.com/cli-llm-chat/llmchat/internal/session"
	"github.com/cli-llm-chat/llmchat/internal/storage"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates authentication or authorization failure
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitInterrupted follows the shell convention for SIGINT
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError represents invalid flags or arguments.
type UsageError struct {
	Message string
	Err     error
}

func (e *UsageError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// CommandError represents a command that failed after doing some work,
// where the details were already shown to the user.
type CommandError struct {
	Command string
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Command, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Command, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode determines the exit code for an error returned by a command.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr *UsageError
		loopErr  *session.UsageError
		validErr *cloud.ValidationError
		authErr  *cloud.AuthError
		apiErr   *cloud.APIError
	)

	switch {
	case errors.As(err, &usageErr), errors.As(err, &loopErr), errors.As(err, &validErr),
		errors.Is(err, storage.ErrInvalidName), errors.Is(err, cloud.ErrStreamingUnsupported):
		return ExitUsageError
	case errors.Is(err, config.ErrConfigMissing), errors.Is(err, cloud.ErrNotConfigured):
		return ExitConfigError
	case errors.As(err, &authErr):
		return ExitAuthError
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &apiErr) && apiErr.IsNetwork():
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// DisplayError writes err in the standard format.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render(hint))
	}
}

func errorHint(err error) string {
	var authErr *cloud.AuthError
	switch {
	case errors.Is(err, config.ErrConfigMissing), errors.Is(err, cloud.ErrNotConfigured):
		return "Run 'llmchat config-set' to set your OpenRouter API key."
	case errors.As(err, &authErr):
		return "Check your API key with 'llmchat doctor' or update it with 'llmchat config-set'."
	case errors.Is(err, storage.ErrNotFound):
		return "Run 'llmchat conversations list' to see saved conversations."
	}
	return ""
}

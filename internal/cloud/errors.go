// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"
	"fmt"
)

// Error variables for requests that never reach the network.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("OpenRouter API key not configured")

	// ErrStreamingUnsupported is returned when SendOptions.Stream is set.
	ErrStreamingUnsupported = errors.New("streaming responses are not supported")
)

// APIError is a failed exchange with OpenRouter. StatusCode is 0 when no
// HTTP response was received, in which case Err holds the transport error.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("OpenRouter request failed: %v", e.Err)
		}
		return "OpenRouter request failed: " + e.Message
	}
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if e.Code != "" {
		return fmt.Sprintf("OpenRouter error [%s] (HTTP %d): %s", e.Code, e.StatusCode, msg)
	}
	return fmt.Sprintf("OpenRouter error (HTTP %d): %s", e.StatusCode, msg)
}

// Unwrap returns the underlying transport or decode error, if any.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether the request failed before a response arrived.
func (e *APIError) IsNetwork() bool {
	return e.StatusCode == 0
}

// AuthError is returned for 401 and 403 responses: the key is missing,
// invalid or lacks access.
type AuthError struct {
	Err *APIError
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return "authentication failed: " + e.Err.Error()
}

// Unwrap exposes the underlying APIError to errors.As.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// ValidationError reports a request that was rejected before sending.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

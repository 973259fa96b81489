// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the OpenRouter chat completions client.
//
// Every call is a single blocking HTTP exchange carrying the full
// transcript. There is no streaming and no retry.
//
// # Key Types
//
//   - Client: HTTP client for the completions and models endpoints
//   - SendOptions: model, temperature and token limit for one request
//   - APIError, AuthError, ValidationError: typed failures for errors.As
//
// # Usage
//
//	client := cloud.NewClient(apiKey).WithLogger(logger)
//	reply, err := client.Send(ctx, conv.Transcript(), cloud.SendOptions{
//	    Model:       conv.Model,
//	    Temperature: 0.7,
//	})
//	var authErr *cloud.AuthError
//	if errors.As(err, &authErr) {
//	    // ask for a new key
//	}
//
// # Security
//
// API keys are masked in debug output and all requests use TLS 1.2+.
package cloud

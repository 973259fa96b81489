// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// settings and model descriptors.
//
// # Key Types
//
//   - Conversation: ordered transcript with name, model and timestamps
//   - Message: single immutable message with role, content and timestamp
//   - Settings: API key, default model and reply verbosity
//   - ModelDescriptor: an entry from the provider's model list
//
// # Usage
//
//	conv := model.NewConversation("proj", model.DefaultModelID)
//	conv = conv.WithMessage(model.NewUserMessage("Hello!"))
package model

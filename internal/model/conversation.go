// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an ordered transcript plus the model it is sent to.
//
// Messages are append-only; the only way to drop history is Cleared. All
// mutators return a new Conversation and leave the receiver untouched, so a
// handler that fails can simply discard its result.
type Conversation struct {
	// Name identifies a persisted conversation. Empty means ephemeral.
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// NewConversation creates an empty conversation for the given model.
func NewConversation(name, modelID string) Conversation {
	t := now()
	return Conversation{
		Name:      name,
		Model:     modelID,
		CreatedAt: t,
		UpdatedAt: t,
		Messages:  []Message{},
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// WithMessage returns a copy of c with msg appended.
func (c Conversation) WithMessage(msg Message) Conversation {
	messages := make([]Message, len(c.Messages), len(c.Messages)+1)
	copy(messages, c.Messages)
	c.Messages = append(messages, msg)
	c.UpdatedAt = now()
	return c
}

// Cleared returns a copy of c with an empty transcript.
func (c Conversation) Cleared() Conversation {
	c.Messages = []Message{}
	c.UpdatedAt = now()
	return c
}

// Renamed returns a copy of c under a new name.
func (c Conversation) Renamed(name string) Conversation {
	c.Name = name
	return c
}

// WithModel returns a copy of c that targets another model.
func (c Conversation) WithModel(modelID string) Conversation {
	c.Model = modelID
	return c
}

// WithSystemPrompt returns a copy of c whose leading system message is
// replaced by prompt. When the transcript does not start with a system
// message it is returned unchanged.
func (c Conversation) WithSystemPrompt(prompt string) Conversation {
	if len(c.Messages) == 0 || c.Messages[0].Role != RoleSystem {
		return c
	}
	messages := make([]Message, len(c.Messages))
	copy(messages, c.Messages)
	messages[0] = NewSystemMessage(prompt)
	c.Messages = messages
	c.UpdatedAt = now()
	return c
}

// Transcript returns a copy of the messages in order.
func (c Conversation) Transcript() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// MessageCount returns the number of messages in the conversation.
func (c Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty reports whether the transcript has no messages.
func (c Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// IsNamed reports whether the conversation can be persisted.
func (c Conversation) IsNamed() bool {
	return c.Name != ""
}

// Preview returns the first user message, used by listings.
func (c Conversation) Preview() string {
	for _, m := range c.Messages {
		if m.Role == RoleUser && m.Content != "" {
			return m.Content
		}
	}
	return ""
}

// Validate reports structural problems with a conversation record.
func (c Conversation) Validate() error {
	if c.Model == "" {
		return errors.New("missing model")
	}
	if c.Messages == nil {
		return errors.New("missing messages")
	}
	for i, m := range c.Messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

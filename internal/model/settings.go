// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "fmt"

// DefaultModelID is used when no model is configured anywhere.
const DefaultModelID = "google/gemini-2.0-flash-001"

// Verbosity selects how long replies should be.
type Verbosity string

const (
	VerbosityShort  Verbosity = "short"
	VerbosityMedium Verbosity = "medium"
	VerbosityLong   Verbosity = "long"
)

// DefaultVerbosity is the verbosity of a fresh install.
const DefaultVerbosity = VerbosityMedium

var systemPrompts = map[Verbosity]string{
	VerbosityShort:  "You are a helpful AI assistant. IMPORTANT: Always provide concise responses of 1-5 lines maximum. Keep explanations minimal and focused.",
	VerbosityMedium: "You are a helpful AI assistant. IMPORTANT: Provide balanced responses between 5-15 lines. Include key details and brief examples while maintaining clarity.",
	VerbosityLong:   "You are a helpful AI assistant. IMPORTANT: Provide comprehensive responses with detailed explanations, relevant examples, and thorough context. Focus on depth and completeness.",
}

// ParseVerbosity validates a user supplied verbosity level.
func ParseVerbosity(s string) (Verbosity, error) {
	v := Verbosity(s)
	if _, ok := systemPrompts[v]; !ok {
		return "", fmt.Errorf("invalid verbosity %q: use short, medium or long", s)
	}
	return v, nil
}

// SystemPrompt returns the system message seeded into new conversations.
// Unknown levels fall back to the default.
func (v Verbosity) SystemPrompt() string {
	if p, ok := systemPrompts[v]; ok {
		return p
	}
	return systemPrompts[DefaultVerbosity]
}

// Settings is the persisted client configuration. It is always written as a
// whole record.
type Settings struct {
	APIKey       string    `toml:"api_key" json:"api_key"`
	DefaultModel string    `toml:"default_model" json:"default_model"`
	Verbosity    Verbosity `toml:"verbosity" json:"verbosity"`
}

// DefaultSettings returns the settings of a fresh install (no key).
func DefaultSettings() Settings {
	return Settings{
		DefaultModel: DefaultModelID,
		Verbosity:    DefaultVerbosity,
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved conversations to shareable files.
//
// # Key Types
//
//   - Exporter: Converts a conversation to bytes in one format
//   - Options: Output directory and which parts to include
//
// # Supported Formats
//
//   - md: Human-readable Markdown with YAML frontmatter
//   - json: The stored record, suitable for copying between machines
//
// # Usage
//
//	exporter, err := export.ForFormat("md", export.DefaultOptions())
//	path, err := export.ExportToFile(conv, exporter, opts)
package export

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence.
//
// Each named conversation is stored as a pretty-printed JSON file,
// conversations/<name>.json, under the config directory. Writes go through a
// temp file and a rename so a crash never leaves a half-written transcript.
//
// # Usage
//
//	store := storage.NewConversationStore(configDir)
//	if err := store.Save(&conv); err != nil {
//	    return err
//	}
//	conv, err := store.Load("project")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // start fresh
//	}
package storage

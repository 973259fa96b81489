// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cli-llm-chat/llmchat/internal/model"
)

func newStore(t *testing.T) *ConversationStore {
	t.Helper()
	return NewConversationStore(t.TempDir())
}

func sampleConversation(name string) model.Conversation {
	return model.NewConversation(name, model.DefaultModelID).
		WithMessage(model.NewUserMessage("2+2?")).
		WithMessage(model.NewAssistantMessage("4"))
}

// =============================================================================
// SAVE / LOAD TESTS
// =============================================================================

func TestConversationStore_SaveAndLoad(t *testing.T) {
	store := newStore(t)
	conv := sampleConversation("proj")

	require.NoError(t, store.Save(&conv))

	loaded, err := store.Load("proj")
	require.NoError(t, err)
	assert.Equal(t, conv, *loaded)
}

func TestConversationStore_SaveOverwrites(t *testing.T) {
	store := newStore(t)
	conv := sampleConversation("proj")
	require.NoError(t, store.Save(&conv))

	longer := conv.WithMessage(model.NewUserMessage("and 3+3?"))
	require.NoError(t, store.Save(&longer))

	loaded, err := store.Load("proj")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.MessageCount())
}

func TestConversationStore_ClearThenSave(t *testing.T) {
	store := newStore(t)
	conv := sampleConversation("proj")
	require.NoError(t, store.Save(&conv))

	cleared := conv.Cleared()
	require.NoError(t, store.Save(&cleared))

	loaded, err := store.Load("proj")
	require.NoError(t, err)
	assert.True(t, loaded.IsEmpty())
	assert.NotNil(t, loaded.Messages)
}

func TestConversationStore_FileFormat(t *testing.T) {
	store := newStore(t)
	conv := sampleConversation("proj")
	require.NoError(t, store.Save(&conv))

	data, err := os.ReadFile(filepath.Join(store.BaseDir, "proj.json"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"name", "model", "created_at", "updated_at", "messages"} {
		assert.Contains(t, raw, key)
	}
	msgs := raw["messages"].([]any)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "2+2?", first["content"])
	assert.Contains(t, first, "timestamp")
	assert.True(t, strings.Contains(string(data), "\n  "), "expected indented JSON")
}

func TestConversationStore_SavePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	store := newStore(t)
	conv := sampleConversation("proj")
	require.NoError(t, store.Save(&conv))

	info, err := os.Stat(filepath.Join(store.BaseDir, "proj.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConversationStore_SaveInvalidName(t *testing.T) {
	store := newStore(t)

	for _, name := range []string{"", "a/b", `a\b`, ".hidden", "..", "../escape"} {
		t.Run(name, func(t *testing.T) {
			conv := sampleConversation(name)
			err := store.Save(&conv)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}

	assert.Error(t, store.Save(nil))
}

// =============================================================================
// LOAD ERROR TESTS
// =============================================================================

func TestConversationStore_LoadNotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.Load("absent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, ErrCorruptData))
}

func TestConversationStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"name": "bad", "messages": [`},
		{"missing model", `{"name": "bad", "messages": []}`},
		{"invalid role", `{"name": "bad", "model": "m", "messages": [{"role": "robot", "content": "x"}]}`},
		{"name mismatch", `{"name": "other", "model": "m", "messages": []}`},
		{"not an object", `[1, 2, 3]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, os.MkdirAll(store.BaseDir, 0700))
			require.NoError(t, os.WriteFile(filepath.Join(store.BaseDir, "bad.json"), []byte(tc.content), 0600))

			var conv *model.Conversation
			var err error
			assert.NotPanics(t, func() {
				conv, err = store.Load("bad")
			})
			assert.Nil(t, conv)
			assert.ErrorIs(t, err, ErrCorruptData)
		})
	}
}

func TestConversationStore_LoadAdoptsFileName(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.MkdirAll(store.BaseDir, 0700))
	content := `{"model": "m", "messages": [{"role": "user", "content": "hi"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(store.BaseDir, "manual.json"), []byte(content), 0600))

	conv, err := store.Load("manual")
	require.NoError(t, err)
	assert.Equal(t, "manual", conv.Name)
}

func TestConversationStore_LoadInvalidName(t *testing.T) {
	_, err := newStore(t).Load("../config")
	assert.ErrorIs(t, err, ErrInvalidName)
}

// =============================================================================
// LIST TESTS
// =============================================================================

func TestConversationStore_ListMissingDir(t *testing.T) {
	names, err := newStore(t).List()
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.NotNil(t, names)
}

func TestConversationStore_ListAlphabetical(t *testing.T) {
	store := newStore(t)
	for _, name := range []string{"zeta", "Zed", "beta", "alpha"} {
		conv := sampleConversation(name)
		require.NoError(t, store.Save(&conv))
	}

	// Noise that must be skipped.
	require.NoError(t, os.WriteFile(filepath.Join(store.BaseDir, "notes.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(store.BaseDir, ".tmp-123"), []byte("x"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(store.BaseDir, "dir.json"), 0700))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Zed", "alpha", "beta", "zeta"}, names)
}

func TestConversationStore_ListInfo(t *testing.T) {
	store := newStore(t)
	conv := sampleConversation("good")
	require.NoError(t, store.Save(&conv))
	require.NoError(t, os.WriteFile(filepath.Join(store.BaseDir, "bad.json"), []byte("{"), 0600))

	metas, err := store.ListInfo()
	require.NoError(t, err)
	require.Len(t, metas, 2)

	assert.Equal(t, "bad", metas[0].Name)
	assert.True(t, metas[0].Corrupt)

	assert.Equal(t, "good", metas[1].Name)
	assert.Equal(t, 2, metas[1].MessageCount)
	assert.Equal(t, "2+2?", metas[1].Preview)
	assert.Equal(t, model.DefaultModelID, metas[1].Model)
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestConversationStore_DeleteIdempotent(t *testing.T) {
	store := newStore(t)
	conv := sampleConversation("proj")
	require.NoError(t, store.Save(&conv))
	assert.True(t, store.Exists("proj"))

	require.NoError(t, store.Delete("proj"))
	assert.False(t, store.Exists("proj"))
	require.NoError(t, store.Delete("proj"))

	_, err := store.Load("proj")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationStore_DeleteInvalidName(t *testing.T) {
	assert.ErrorIs(t, newStore(t).Delete("../x"), ErrInvalidName)
}

// =============================================================================
// FORMATTING TESTS
// =============================================================================

func TestFormatList(t *testing.T) {
	assert.Equal(t, "No saved conversations.", FormatList(nil))

	out := FormatList([]ConversationMeta{
		{Name: "proj", Model: "openai/gpt-4o", MessageCount: 3, Preview: "hello"},
		{Name: "broken", Corrupt: true},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "proj")
	assert.Contains(t, lines[1], "openai/gpt-4o")
	assert.Contains(t, lines[1], "hello")
	assert.Contains(t, lines[2], "(corrupt)")
}

func TestConversationError_Is(t *testing.T) {
	assert.True(t, errors.Is(ErrNotFound, &ConversationError{Message: "conversation not found"}))
	assert.False(t, errors.Is(ErrNotFound, ErrCorruptData))
}

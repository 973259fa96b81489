// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/util"
)

const (
	fileExt = ".json"

	// SECURITY: transcripts may contain private content.
	filePerm = 0600
	dirPerm  = 0700
)

// =============================================================================
// CONVERSATION METADATA
// =============================================================================

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // First user message truncated
	Corrupt      bool      `json:"corrupt,omitempty"`
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore keeps one JSON file per named conversation.
//
// Every Save replaces the whole file, so with two processes writing the same
// name the last write wins.
type ConversationStore struct {
	// BaseDir is the directory for storing conversations
	// Default: <config dir>/conversations/
	BaseDir string
}

// NewConversationStore creates a store under configDir/conversations. The
// directory is created lazily on first Save.
func NewConversationStore(configDir string) *ConversationStore {
	return NewConversationStoreWithDir(filepath.Join(configDir, "conversations"))
}

// NewConversationStoreWithDir creates a store with a custom directory.
func NewConversationStoreWithDir(baseDir string) *ConversationStore {
	return &ConversationStore{BaseDir: baseDir}
}

// ValidateName checks that name can be used as a file name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidName, name)
	}
	return nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save writes conv under conv.Name, replacing any previous content. The
// value is stored exactly as given.
func (s *ConversationStore) Save(conv *model.Conversation) error {
	if conv == nil {
		return errors.New("nil conversation")
	}
	if err := ValidateName(conv.Name); err != nil {
		return err
	}

	stored := *conv
	if stored.Messages == nil {
		stored.Messages = []model.Message{}
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversation %q: %w", conv.Name, err)
	}
	if err := util.AtomicWriteFile(s.filePath(conv.Name), data, filePerm, dirPerm); err != nil {
		return fmt.Errorf("failed to save conversation %q: %w", conv.Name, err)
	}
	return nil
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by name.
func (s *ConversationStore) Load(name string) (*model.Conversation, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.filePath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read conversation %q: %w", name, err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptData, name, err)
	}
	if err := conv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptData, name, err)
	}

	// Hand-written files may omit the name.
	if conv.Name == "" {
		conv.Name = name
	}
	if conv.Name != name {
		return nil, fmt.Errorf("%w: %s: stored name %q does not match", ErrCorruptData, name, conv.Name)
	}

	return &conv, nil
}

// Info returns listing metadata for one conversation.
func (s *ConversationStore) Info(name string) (ConversationMeta, error) {
	conv, err := s.Load(name)
	if err != nil {
		return ConversationMeta{Name: name, Corrupt: errors.Is(err, ErrCorruptData)}, err
	}
	return ConversationMeta{
		Name:         conv.Name,
		Model:        conv.Model,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		MessageCount: conv.MessageCount(),
		Preview:      util.TruncateRunes(util.SingleLine(conv.Preview()), 80),
	}, nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns the names of all saved conversations in alphabetical order.
// A missing directory yields an empty list.
func (s *ConversationStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || util.IsTempFile(fileName) || !strings.HasSuffix(fileName, fileExt) {
			continue
		}
		name := strings.TrimSuffix(fileName, fileExt)
		if ValidateName(name) != nil {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

// ListInfo returns metadata for every saved conversation in List order.
// Unreadable files are included with Corrupt set.
func (s *ConversationStore) ListInfo() ([]ConversationMeta, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}

	metas := make([]ConversationMeta, 0, len(names))
	for _, name := range names {
		meta, err := s.Info(name)
		if err != nil && !meta.Corrupt {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation. Deleting a conversation that does not
// exist succeeds.
func (s *ConversationStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.filePath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete conversation %q: %w", name, err)
	}
	return nil
}

// Exists reports whether a conversation file is present.
func (s *ConversationStore) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	_, err := os.Stat(s.filePath(name))
	return err == nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a conversation name.
func (s *ConversationStore) filePath(name string) string {
	return filepath.Join(s.BaseDir, name+fileExt)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a conversation doesn't exist.
	// Use errors.Is(err, ErrNotFound) to check for this error.
	ErrNotFound = &ConversationError{Message: "conversation not found"}

	// ErrCorruptData is returned when a stored conversation cannot be decoded
	// or fails validation.
	ErrCorruptData = &ConversationError{Message: "conversation data is corrupt"}

	// ErrInvalidName is returned for names that cannot be used as file names.
	ErrInvalidName = &ConversationError{Message: "invalid conversation name"}
)

// ConversationError represents a conversation-related error.
// It implements the error interface and can be compared using errors.Is.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders conversation metadata as a table.
func FormatList(metas []ConversationMeta) string {
	if len(metas) == 0 {
		return "No saved conversations."
	}

	var sb strings.Builder
	sb.WriteString(formatPadded("NAME", 20) + " " + formatPadded("UPDATED", 16) + " " +
		formatPadded("MSGS", 5) + " " + formatPadded("MODEL", 30) + " PREVIEW\n")

	for _, m := range metas {
		if m.Corrupt {
			sb.WriteString(formatPadded(m.Name, 20) + " (corrupt)\n")
			continue
		}
		sb.WriteString(formatPadded(runewidth.Truncate(m.Name, 20, "..."), 20) + " " +
			formatPadded(m.UpdatedAt.Local().Format("2006-01-02 15:04"), 16) + " " +
			formatPadded(strconv.Itoa(m.MessageCount), 5) + " " +
			formatPadded(runewidth.Truncate(m.Model, 30, "..."), 30) + " " +
			util.TruncateRunes(m.Preview, 40) + "\n")
	}
	return sb.String()
}

// formatPadded pads a string to the specified display width with spaces.
func formatPadded(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// AppDirName is the directory created under the user config root.
	AppDirName = "cli-llm-chat"

	// FileName is the settings file inside the config directory.
	FileName = "config.toml"

	// SECURITY: settings hold the API key.
	filePerm = 0600
	dirPerm  = 0700
)

// Environment variables consulted by Resolve.
const (
	EnvAPIKey    = "OPENROUTER_API_KEY"
	EnvModel     = "DEFAULT_MODEL"
	EnvVerbosity = "RESPONSE_VERBOSITY"
)

// ErrConfigMissing is returned when no settings file exists, or when no
// source provides an API key.
var ErrConfigMissing = errors.New("configuration missing: run 'llmchat config-set' to set your OpenRouter API key")

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the configuration directory. $XDG_CONFIG_HOME wins over
// ~/.config when set.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ensureSecurePermissions tightens a settings file that is readable by
// others.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != filePerm {
		if err := os.Chmod(path, filePerm); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// STORE
// =============================================================================

// Store reads and writes the settings file.
type Store struct {
	dir string
	log *zap.Logger
}

// NewStore returns a store rooted at dir. A nil logger discards output.
func NewStore(dir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, log: log}
}

// DefaultStore returns a store rooted at Dir().
func DefaultStore(log *zap.Logger) (*Store, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return NewStore(dir, log), nil
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Exists reports whether a settings file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// Load reads the settings file. Fields absent from the file keep their
// defaults. ErrConfigMissing is returned when there is no file.
func (s *Store) Load() (model.Settings, error) {
	path := s.Path()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.DefaultSettings(), ErrConfigMissing
		}
		return model.Settings{}, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := ensureSecurePermissions(path); err != nil {
		s.log.Warn("could not ensure secure permissions", zap.String("path", path), zap.Error(err))
	}

	settings := model.DefaultSettings()
	if _, err := toml.DecodeFile(path, &settings); err != nil {
		return model.Settings{}, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	if settings.DefaultModel == "" {
		settings.DefaultModel = model.DefaultModelID
	}
	if settings.Verbosity == "" {
		settings.Verbosity = model.DefaultVerbosity
	}
	return settings, nil
}

// Save writes the whole settings record atomically with owner-only
// permissions.
func (s *Store) Save(settings model.Settings) error {
	var buf bytes.Buffer
	buf.WriteString("# llmchat configuration file\n")
	buf.WriteString("# Written by 'llmchat config-set'\n\n")

	if err := toml.NewEncoder(&buf).Encode(settings); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(s.Path(), buf.Bytes(), filePerm, dirPerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	s.log.Debug("config saved", zap.String("path", s.Path()))
	return nil
}

// Get is an alias for Load.
func (s *Store) Get() (model.Settings, error) {
	return s.Load()
}

// Set is an alias for Save.
func (s *Store) Set(settings model.Settings) error {
	return s.Save(settings)
}

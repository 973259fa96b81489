// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/cli-llm-chat/llmchat/internal/model"
)

// Prompter asks the user for an API key. It is only consulted when no other
// source provides one.
type Prompter func() (string, error)

// Sources are the inputs Resolve merges. Empty strings mean "not given".
type Sources struct {
	FlagAPIKey    string
	FlagModel     string
	FlagVerbosity string

	// Store is the persisted settings file. Nil skips the file.
	Store *Store

	// Prompt is the interactive fallback for the API key. Nil disables it.
	Prompt Prompter

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Resolve merges the sources field by field with the precedence
// flag > environment > file > prompt. A key obtained from the prompt is
// persisted so the user is asked only once. ErrConfigMissing is returned
// when no source yields an API key.
func Resolve(src Sources) (model.Settings, error) {
	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	file := model.DefaultSettings()
	haveFile := false
	if src.Store != nil {
		loaded, err := src.Store.Load()
		switch {
		case err == nil:
			file = loaded
			haveFile = true
		case errors.Is(err, ErrConfigMissing):
		default:
			return model.Settings{}, err
		}
	}

	settings := model.Settings{
		APIKey:       first(src.FlagAPIKey, getenv(EnvAPIKey), file.APIKey),
		DefaultModel: first(src.FlagModel, getenv(EnvModel), file.DefaultModel, model.DefaultModelID),
	}

	verbosity := first(src.FlagVerbosity, getenv(EnvVerbosity), string(file.Verbosity), string(model.DefaultVerbosity))
	v, err := model.ParseVerbosity(verbosity)
	if err != nil {
		return model.Settings{}, err
	}
	settings.Verbosity = v

	if settings.APIKey == "" && src.Prompt != nil {
		key, err := src.Prompt()
		if err != nil {
			return model.Settings{}, fmt.Errorf("failed to read API key: %w", err)
		}
		settings.APIKey = strings.TrimSpace(key)
		if settings.APIKey != "" && src.Store != nil {
			persisted := file
			persisted.APIKey = settings.APIKey
			if !haveFile {
				persisted.DefaultModel = settings.DefaultModel
				persisted.Verbosity = settings.Verbosity
			}
			if err := src.Store.Save(persisted); err != nil {
				return model.Settings{}, err
			}
		}
	}

	if settings.APIKey == "" {
		return settings, ErrConfigMissing
	}
	return settings, nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables that are already set are left alone, and a missing file is not
// an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// configset.go - config-set command implementation for llmchat.
//
// Command: config-set
// Short:   Save the API key, default model and verbosity
//
// Flags:
//   --api-key KEY        New key, or "keep" to leave the current one
//   --default-model ID   Model used when --model is not given
//   --verbosity LEVEL    short, medium or long
//
// With no flags the key and default model are asked for interactively.
// A new key is checked against the models endpoint before it is saved.
//
// Examples:
//   llmchat config-set
//   llmchat config-set --api-key sk-or-v1-... --default-model openai/gpt-4o-mini
//   llmchat config-set --api-key keep --verbosity short

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cli-llm-chat/llmchat/internal/config"
	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/util"
)

const (
	// keyPrefix is how OpenRouter keys start.
	keyPrefix = "sk-or-"

	// keepKey leaves the stored key unchanged.
	keepKey = "keep"

	// keyCheckTimeout bounds the key validation request.
	keyCheckTimeout = 15 * time.Second
)

type configSetOptions struct {
	defaultModel string
	verbosity    string
}

func newConfigSetCommand(app *App, global *globalOptions) *cobra.Command {
	opts := &configSetOptions{}
	cmd := &cobra.Command{
		Use:   "config-set",
		Short: "Save API key, default model and verbosity",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runConfigSet(cmd, global, opts)
		},
	}
	cmd.Flags().StringVar(&opts.defaultModel, "default-model", "", "Default model ID")
	cmd.Flags().StringVar(&opts.verbosity, "verbosity", "", "Reply verbosity: short, medium or long")
	return cmd
}

func (a *App) runConfigSet(cmd *cobra.Command, global *globalOptions, opts *configSetOptions) error {
	store, err := a.configStore()
	if err != nil {
		return err
	}
	current, err := store.Load()
	if err != nil && !errors.Is(err, config.ErrConfigMissing) {
		return err
	}
	next := current

	flags := cmd.Flags()
	keyGiven := flags.Changed("api-key")
	modelGiven := flags.Changed("default-model")
	verbosityGiven := flags.Changed("verbosity")
	key := global.apiKey

	if !keyGiven && !modelGiven && !verbosityGiven {
		answer, err := a.promptSecret(fmt.Sprintf("OpenRouter API key [%s] (Enter to keep): ", util.MaskKey(current.APIKey)))
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		if answer != "" {
			key, keyGiven = answer, true
		}
		modelAnswer, err := a.promptLine(fmt.Sprintf("Default model [%s]: ", current.DefaultModel))
		if err != nil {
			return fmt.Errorf("failed to read default model: %w", err)
		}
		if modelAnswer != "" {
			opts.defaultModel, modelGiven = modelAnswer, true
		}
	}

	if verbosityGiven {
		v, err := parseVerbosityFlag(opts.verbosity)
		if err != nil {
			return err
		}
		next.Verbosity = v
	}
	if modelGiven {
		modelID := strings.TrimSpace(opts.defaultModel)
		if modelID == "" {
			return &UsageError{Message: "--default-model must not be empty"}
		}
		next.DefaultModel = modelID
	}
	if keyGiven && key != keepKey {
		key = strings.TrimSpace(key)
		if key == "" {
			return &UsageError{Message: "--api-key must not be empty"}
		}
		if err := a.checkKey(cmd.Context(), key); err != nil {
			return err
		}
		next.APIKey = key
	}

	if err := store.Save(next); err != nil {
		return err
	}

	fmt.Fprintln(a.Out, SuccessStyle.Render("Configuration saved to "+store.Path()))
	fmt.Fprintln(a.Out, RenderLabel("API key:")+util.MaskKey(next.APIKey))
	fmt.Fprintln(a.Out, RenderLabel("Default model:")+next.DefaultModel)
	fmt.Fprintln(a.Out, RenderLabel("Verbosity:")+string(next.Verbosity))
	return nil
}

// checkKey tests key by listing models. A failing key is only saved when
// the user confirms.
func (a *App) checkKey(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, keyPrefix) {
		fmt.Fprintln(a.Out, WarningStyle.Render("Warning: ")+fmt.Sprintf("OpenRouter API keys usually start with '%s'.", keyPrefix))
	}

	fmt.Fprintln(a.Out, "Testing API key...")
	ctx, cancel := context.WithTimeout(ctx, keyCheckTimeout)
	defer cancel()

	models, err := a.newClient(key).ListModels(ctx)
	if err == nil {
		fmt.Fprintln(a.Out, SuccessStyle.Render(fmt.Sprintf("API key is valid (%d models available).", len(models))))
		return nil
	}

	fmt.Fprintln(a.Out, ErrorStyle.Render("API key test failed: ")+err.Error())
	if a.confirm("Save this key anyway? [y/N]: ") {
		return nil
	}
	fmt.Fprintln(a.Out, "Configuration not saved.")
	return &CommandError{Command: "config-set", Reason: "API key check failed", Err: err}
}

func parseVerbosityFlag(s string) (model.Verbosity, error) {
	v, err := model.ParseVerbosity(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return "", &UsageError{Err: err}
	}
	return v, nil
}

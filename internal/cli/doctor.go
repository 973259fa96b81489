// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation for llmchat.
//
// Command: doctor
// Short:   Check configuration and connectivity
//
// Health Checks Performed:
//   1. Config File     - Settings file exists and parses
//   2. API Key         - A key is available and looks like an OpenRouter key
//   3. Default Model   - A default model is configured
//   4. Verbosity       - The verbosity level is valid
//   5. Environment     - Which settings come from environment variables
//   6. Connectivity    - The models endpoint answers with this key
//
// Exit Codes:
//   0   All checks passed (warnings allowed)
//   1   One or more checks failed

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cli-llm-chat/llmchat/internal/config"
	"github.com/cli-llm-chat/llmchat/internal/util"
)

// connectivityTimeout bounds the doctor's models request.
const connectivityTimeout = 15 * time.Second

// CheckStatus represents the result of a health check.
type CheckStatus int

const (
	CheckPass CheckStatus = iota
	CheckWarn
	CheckFail
)

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string
}

func newDoctorCommand(app *App, global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"debug"},
		Short:   "Check configuration and connectivity",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.configStore()
			if err != nil {
				return err
			}
			results := app.runChecks(cmd.Context(), store, global)

			fmt.Fprintln(app.Out, TitleStyle.Render("llmchat doctor"))
			fmt.Fprintln(app.Out, RenderSeparator())
			failed := 0
			for _, r := range results {
				fmt.Fprintf(app.Out, "%s %s%s\n", renderCheck(r.Status), RenderLabel(r.Name), r.Message)
				if r.Fix != "" {
					fmt.Fprintln(app.Out, "       "+DimStyle.Render(r.Fix))
				}
				if r.Status == CheckFail {
					failed++
				}
			}
			fmt.Fprintln(app.Out, RenderSeparator())

			if failed > 0 {
				return &CommandError{Command: "doctor", Reason: fmt.Sprintf("%d check(s) failed", failed)}
			}
			fmt.Fprintln(app.Out, SuccessStyle.Render("All checks passed."))
			return nil
		},
	}
}

func renderCheck(s CheckStatus) string {
	switch s {
	case CheckPass:
		return SuccessStyle.Render("[OK]  ")
	case CheckWarn:
		return WarningStyle.Render("[WARN]")
	default:
		return ErrorStyle.Render("[FAIL]")
	}
}

// runChecks gathers every check result. It never prompts.
func (a *App) runChecks(ctx context.Context, store *config.Store, global *globalOptions) []CheckResult {
	var results []CheckResult

	_, loadErr := store.Load()
	switch {
	case loadErr == nil:
		results = append(results, CheckResult{Name: "Config file", Status: CheckPass, Message: store.Path()})
	case errors.Is(loadErr, config.ErrConfigMissing):
		results = append(results, CheckResult{
			Name: "Config file", Status: CheckWarn,
			Message: "not found at " + store.Path(),
			Fix:     "Run 'llmchat config-set' to create it",
		})
	default:
		results = append(results, CheckResult{
			Name: "Config file", Status: CheckFail,
			Message: loadErr.Error(),
			Fix:     "Fix or delete " + store.Path() + " and run 'llmchat config-set'",
		})
	}

	settings, err := config.Resolve(config.Sources{
		FlagAPIKey: global.apiKey,
		Store:      storeIfReadable(store, loadErr),
		Getenv:     a.Getenv,
	})
	if err != nil && !errors.Is(err, config.ErrConfigMissing) {
		results = append(results, CheckResult{Name: "Settings", Status: CheckFail, Message: err.Error()})
		return results
	}

	results = append(results, checkAPIKey(settings.APIKey))
	results = append(results, CheckResult{Name: "Default model", Status: CheckPass, Message: settings.DefaultModel})
	results = append(results, CheckResult{Name: "Verbosity", Status: CheckPass, Message: string(settings.Verbosity)})
	results = append(results, a.checkEnvironment())

	if settings.APIKey == "" {
		results = append(results, CheckResult{Name: "Connectivity", Status: CheckWarn, Message: "skipped, no API key"})
		return results
	}
	ctx, cancel := context.WithTimeout(ctx, connectivityTimeout)
	defer cancel()
	models, err := a.newClient(settings.APIKey).ListModels(ctx)
	if err != nil {
		results = append(results, CheckResult{
			Name: "Connectivity", Status: CheckFail,
			Message: err.Error(),
			Fix:     "Check your network and API key",
		})
		return results
	}
	results = append(results, CheckResult{Name: "Connectivity", Status: CheckPass, Message: fmt.Sprintf("OpenRouter reachable, %d models available", len(models))})
	return results
}

// storeIfReadable drops a store whose file failed to parse so the other
// sources can still be checked.
func storeIfReadable(store *config.Store, loadErr error) *config.Store {
	if loadErr != nil && !errors.Is(loadErr, config.ErrConfigMissing) {
		return nil
	}
	return store
}

func checkAPIKey(key string) CheckResult {
	switch {
	case key == "":
		return CheckResult{Name: "API key", Status: CheckFail, Message: "not set", Fix: "Run 'llmchat config-set' or set " + config.EnvAPIKey}
	case !strings.HasPrefix(key, keyPrefix):
		return CheckResult{Name: "API key", Status: CheckWarn, Message: util.MaskKey(key) + " (does not start with " + keyPrefix + ")"}
	default:
		return CheckResult{Name: "API key", Status: CheckPass, Message: util.MaskKey(key)}
	}
}

func (a *App) checkEnvironment() CheckResult {
	getenv := a.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	var set []string
	for _, name := range []string{config.EnvAPIKey, config.EnvModel, config.EnvVerbosity} {
		if getenv(name) != "" {
			set = append(set, name)
		}
	}
	if len(set) == 0 {
		return CheckResult{Name: "Environment", Status: CheckPass, Message: "no overrides"}
	}
	return CheckResult{Name: "Environment", Status: CheckPass, Message: "overrides from " + strings.Join(set, ", ")}
}

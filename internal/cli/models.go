// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - models command implementation for llmchat.
//
// Command: models
// Short:   List models available through OpenRouter
//
// Flags:
//   --limit N           Show at most N models (default 20, 0 = all)
//
// Examples:
//   llmchat models
//   llmchat models --limit 0

package cli

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/util"
)

const (
	// DefaultModelLimit is how many models are listed without --limit.
	DefaultModelLimit = 20

	// maxDescriptionRunes caps model descriptions in the listing.
	maxDescriptionRunes = 200

	// detailIndent aligns detail lines under a model ID.
	detailIndent = "      "
)

func newModelsCommand(app *App, global *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available models grouped by provider",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return &UsageError{Message: fmt.Sprintf("--limit must not be negative, got %d", limit)}
			}
			store, err := app.configStore()
			if err != nil {
				return err
			}
			settings, err := app.resolveSettings(store, global, false)
			if err != nil {
				return err
			}

			fmt.Fprintln(app.Out, "Fetching available models...")
			models, err := app.newClient(settings.APIKey).ListModels(cmd.Context())
			if err != nil {
				return err
			}
			printModels(app.Out, models, limit)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", DefaultModelLimit, "Maximum number of models to show (0 = all)")
	return cmd
}

// printModels writes the first limit models grouped by provider.
func printModels(w io.Writer, models []model.ModelDescriptor, limit int) {
	if len(models) == 0 {
		fmt.Fprintln(w, "No models available.")
		return
	}

	shown := models
	if limit > 0 && limit < len(models) {
		shown = models[:limit]
	}

	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Available models (%d)", len(models))))
	for _, group := range model.GroupByProvider(shown) {
		fmt.Fprintln(w, SectionStyle.Render(group.Provider))
		for _, m := range group.Models {
			line := "  " + CommandStyle.Render(runewidth.FillRight(m.ID, 45))
			if m.Name != "" && m.Name != m.ID {
				line += " " + m.Name
			}
			fmt.Fprintln(w, line)
			if m.Description != "" {
				fmt.Fprintln(w, detailIndent+DimStyle.Render(util.TruncateRunes(util.SingleLine(m.Description), maxDescriptionRunes)))
			}
			if m.ContextLength > 0 {
				fmt.Fprintf(w, "%sContext: %d tokens\n", detailIndent, m.ContextLength)
			}
			fmt.Fprintln(w, detailIndent+"Pricing: "+m.PricingString())
		}
	}

	if len(shown) < len(models) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("Showing %d of %d models. Use --limit to show more.", len(shown), len(models))))
	}
}

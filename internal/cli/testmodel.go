// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// testmodel.go - test-model command implementation for llmchat.
//
// Command: test-model
// Short:   Send one probe message to a model
//
// Flags:
//   --model MODEL       Model to probe (default from config)
//   --message TEXT      Probe text
//
// Examples:
//   llmchat test-model
//   llmchat test-model --model mistralai/mistral-7b-instruct

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cli-llm-chat/llmchat/internal/cloud"
	"github.com/cli-llm-chat/llmchat/internal/model"
)

// DefaultProbeMessage is sent by test-model when --message is not given.
const DefaultProbeMessage = "Hello! Can you tell me what model you are?"

var troubleshootingTips = []string{
	"Check that your API key is correct and active",
	"Verify that the model ID is valid (see 'llmchat models')",
	"Make sure your account has access to the selected model",
	"Check your internet connection",
	"OpenRouter may be having issues; see https://status.openrouter.ai",
}

func newTestModelCommand(app *App, global *globalOptions) *cobra.Command {
	var modelID, message string
	cmd := &cobra.Command{
		Use:   "test-model",
		Short: "Send a test message to a model",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.configStore()
			if err != nil {
				return err
			}
			settings, err := app.resolveSettings(store, global, false)
			if err != nil {
				return err
			}
			if modelID == "" {
				modelID = settings.DefaultModel
			}

			fmt.Fprintf(app.Out, "Testing model %s...\n", CommandStyle.Render(modelID))
			fmt.Fprintln(app.Out, RenderLabel("Message:")+message)

			start := time.Now()
			reply, err := app.newClient(settings.APIKey).Send(cmd.Context(),
				[]model.Message{model.NewUserMessage(message)},
				cloud.SendOptions{Model: modelID, Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens})
			if err != nil {
				fmt.Fprintln(app.Out, ErrorStyle.Render("Model test failed: ")+err.Error())
				fmt.Fprintln(app.Out)
				fmt.Fprintln(app.Out, TitleStyle.Render("Troubleshooting tips:"))
				for i, tip := range troubleshootingTips {
					fmt.Fprintf(app.Out, "  %d. %s\n", i+1, tip)
				}
				return &CommandError{Command: "test-model", Reason: "request failed", Err: err}
			}

			fmt.Fprintln(app.Out, SuccessStyle.Render(fmt.Sprintf("Model responded in %s", time.Since(start).Round(time.Millisecond))))
			fmt.Fprintln(app.Out, RenderSeparator())
			NewRenderer(app.Out, app.stdoutStyled()).Reply(reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&modelID, "model", "", "Model ID to test (default from config)")
	cmd.Flags().StringVar(&message, "message", DefaultProbeMessage, "Message to send")
	return cmd
}

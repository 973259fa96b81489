// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Chat command implementation for llmchat.
//
// Command: chat
// Short:   Start an interactive chat session
//
// Flags:
//   --model MODEL           Model for this session (default from config)
//   -t, --temperature N     Sampling temperature 0-2 (default 0.7)
//   --max-tokens N          Reply length limit (default 1000, 0 = provider default)
//   -m, --message TEXT      Send one message, print the reply and exit
//   -c, --conversation NAME Load or start a named, auto-saved conversation
//
// Examples:
//   llmchat chat
//   llmchat chat -c research --model anthropic/claude-3.5-sonnet
//   echo "hi" | llmchat chat

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cli-llm-chat/llmchat/internal/cloud"
	"github.com/cli-llm-chat/llmchat/internal/session"
)

// chatOptions are the flags of the chat command.
type chatOptions struct {
	model        string
	temperature  float64
	maxTokens    int
	message      string
	conversation string
}

func addChatFlags(cmd *cobra.Command, opts *chatOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.model, "model", "", "Model ID to use (default from config)")
	flags.Float64VarP(&opts.temperature, "temperature", "t", DefaultTemperature, "Sampling temperature (0-2)")
	flags.IntVar(&opts.maxTokens, "max-tokens", DefaultMaxTokens, "Maximum tokens per reply (0 = provider default)")
	flags.StringVarP(&opts.message, "message", "m", "", "Send a single message and exit")
	flags.StringVarP(&opts.conversation, "conversation", "c", "", "Conversation name to load or create")
}

func newChatCommand(app *App, global *globalOptions, opts *chatOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runChat(cmd, global, opts)
		},
	}
	addChatFlags(cmd, opts)
	return cmd
}

func (opts *chatOptions) validate() error {
	if opts.temperature < 0 || opts.temperature > cloud.MaxTemperature {
		return &UsageError{Message: fmt.Sprintf("--temperature must be between 0 and %g, got %g", cloud.MaxTemperature, opts.temperature)}
	}
	if opts.maxTokens < 0 {
		return &UsageError{Message: fmt.Sprintf("--max-tokens must not be negative, got %d", opts.maxTokens)}
	}
	return nil
}

// runChat starts the loop, or performs one exchange when --message is set.
func (a *App) runChat(cmd *cobra.Command, global *globalOptions, opts *chatOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}

	store, err := a.configStore()
	if err != nil {
		return err
	}
	oneShot := cmd.Flags().Changed("message")
	settings, err := a.resolveSettings(store, global, !oneShot)
	if err != nil {
		return err
	}

	modelID := settings.DefaultModel
	if opts.model != "" {
		modelID = opts.model
	}

	conversations := a.conversationStore(store)
	conv, notice := session.Open(conversations, opts.conversation, modelID)
	if opts.model != "" {
		conv = conv.WithModel(opts.model)
	}

	client := a.newClient(settings.APIKey)
	loopOpts := session.Options{
		Temperature: opts.temperature,
		MaxTokens:   opts.maxTokens,
		Verbosity:   settings.Verbosity,
		Settings:    store,
		Logger:      a.logger(),
	}

	if oneShot {
		if notice.Kind == session.KindError || notice.Kind == session.KindWarning {
			NewRenderer(a.Err, false).Render(notice)
		}
		loop := session.New(client, conversations, nil, NewRenderer(a.Out, a.stdoutStyled()), conv, loopOpts)
		_, err := loop.RunOnce(cmd.Context(), opts.message)
		return err
	}

	renderer := NewRenderer(a.Out, a.stdoutStyled()).WithLabels()

	var in session.LineReader
	var editor *lineEditor
	if a.stdinTerminal() {
		editor = newLineEditor(store.Dir(), a.logger())
		in = editor
	} else {
		in = &plainReader{r: a.lines(), out: a.Out}
	}

	loop := session.New(client, conversations, in, renderer, conv, loopOpts)
	if editor != nil {
		editor.complete = loop.Complete
		defer editor.Close()
	}

	a.printBanner(loop)
	renderer.Render(notice)
	return loop.Run(cmd.Context())
}

func (a *App) printBanner(loop *session.Loop) {
	conv := loop.Conversation()
	name := conv.Name
	if name == "" {
		name = "session " + loop.SessionID() + " (unsaved)"
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("LLM Chat"))
	fmt.Fprintln(a.Out, RenderLabel("Model:")+conv.Model)
	fmt.Fprintln(a.Out, RenderLabel("Conversation:")+name)
	fmt.Fprintln(a.Out, RenderLabel("Verbosity:")+string(loop.Verbosity()))
	fmt.Fprintln(a.Out, DimStyle.Render("Type /help for commands, /exit to quit."))
	fmt.Fprintln(a.Out, RenderSeparator())
}

var _ session.Renderer = (*Renderer)(nil)

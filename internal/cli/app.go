// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Command tree and shared wiring for llmchat.
//
// Command: llmchat [flags]
// Short:   Chat with OpenRouter models from the terminal
//
// Subcommands:
//   chat                Start a chat (same as no subcommand)
//   config-set          Save API key, default model and verbosity
//   models              List available models
//   test-model          Send one probe message to a model
//   doctor              Check configuration and connectivity
//   conversations       List, show or delete saved conversations
//
// Examples:
//   llmchat                              Start an interactive chat
//   llmchat -c work                      Resume or start the "work" conversation
//   llmchat -m "What is a monad?"        Ask one question and exit
//   llmchat --model openai/gpt-4o -t 0.2 Chat with a specific model

package cli

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cli-llm-chat/llmchat/internal/cloud"
	"github.com/cli-llm-chat/llmchat/internal/config"
	"github.com/cli-llm-chat/llmchat/internal/logging"
	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/storage"
)

// Version information (can be overridden at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const (
	// DefaultTemperature is the sampling temperature for chat.
	DefaultTemperature = 0.7

	// DefaultMaxTokens bounds reply length for chat.
	DefaultMaxTokens = 1000
)

// App holds the process-level dependencies shared by all commands.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// ConfigDir overrides the settings directory. Empty uses config.Dir().
	ConfigDir string

	// BaseURL overrides the OpenRouter endpoint.
	BaseURL string

	// HTTPClient overrides the client used for OpenRouter calls.
	HTTPClient *http.Client

	// Getenv defaults to os.Getenv.
	Getenv func(string) string

	log    *zap.Logger
	reader *bufio.Reader
}

// NewApp creates an App bound to the process stdio.
func NewApp() *App {
	return &App{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	}
}

// globalOptions are flags shared by every command.
type globalOptions struct {
	apiKey string
	debug  bool
}

// NewRootCommand builds the llmchat command tree.
func NewRootCommand(app *App) *cobra.Command {
	global := &globalOptions{}
	chat := &chatOptions{}

	root := &cobra.Command{
		Use:           "llmchat",
		Short:         "Chat with OpenRouter models from the terminal",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(global)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runChat(cmd, global, chat)
		},
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	root.PersistentFlags().StringVar(&global.apiKey, "api-key", "", "OpenRouter API key (overrides env and config file)")
	root.PersistentFlags().BoolVar(&global.debug, "debug", false, "Log requests and responses to stderr")
	addChatFlags(root, chat)

	root.AddCommand(
		newChatCommand(app, global, chat),
		newConfigSetCommand(app, global),
		newModelsCommand(app, global),
		newTestModelCommand(app, global),
		newDoctorCommand(app, global),
		newConversationsCommand(app),
	)
	return root
}

// setup runs before every command.
func (a *App) setup(global *globalOptions) error {
	configureColors()
	a.log = logging.New(global.debug, a.Err)
	if err := config.LoadDotEnv(); err != nil {
		a.log.Warn("ignoring .env file", zap.Error(err))
	}
	return nil
}

func (a *App) logger() *zap.Logger {
	if a.log == nil {
		return logging.Nop()
	}
	return a.log
}

// configStore opens the settings store.
func (a *App) configStore() (*config.Store, error) {
	if a.ConfigDir != "" {
		return config.NewStore(a.ConfigDir, a.logger()), nil
	}
	return config.DefaultStore(a.logger())
}

// conversationStore opens the conversation store next to the settings file.
func (a *App) conversationStore(store *config.Store) *storage.ConversationStore {
	return storage.NewConversationStore(store.Dir())
}

// resolveSettings merges flags, env and file. When prompt is true and stdin
// is a terminal, a missing API key is asked for and saved.
func (a *App) resolveSettings(store *config.Store, global *globalOptions, prompt bool) (model.Settings, error) {
	src := config.Sources{
		FlagAPIKey: global.apiKey,
		Store:      store,
		Getenv:     a.Getenv,
	}
	if prompt && a.stdinTerminal() {
		src.Prompt = func() (string, error) {
			fmt.Fprintln(a.Out, WarningStyle.Render("No OpenRouter API key found."))
			fmt.Fprintln(a.Out, DimStyle.Render("Get one at https://openrouter.ai/keys"))
			return a.promptSecret("Enter your OpenRouter API key: ")
		}
	}
	return config.Resolve(src)
}

// newClient creates an OpenRouter client for key.
func (a *App) newClient(key string) *cloud.Client {
	client := cloud.NewClient(key).WithLogger(a.logger())
	if a.BaseURL != "" {
		client.WithBaseURL(a.BaseURL)
	}
	if a.HTTPClient != nil {
		client.WithHTTPClient(a.HTTPClient)
	}
	return client
}

// =============================================================================
// ARGUMENT VALIDATORS
// =============================================================================

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &UsageError{Message: fmt.Sprintf("unknown command or argument %q for %q", args[0], cmd.CommandPath())}
	}
	return nil
}

func exactArgs(n int, what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &UsageError{Message: fmt.Sprintf("%s requires %s (usage: %s)", cmd.CommandPath(), what, cmd.UseLine())}
		}
		return nil
	}
}

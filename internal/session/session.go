// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cli-llm-chat/llmchat/internal/cloud"
	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/storage"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Sender produces the assistant reply for a transcript.
type Sender interface {
	Send(ctx context.Context, transcript []model.Message, opts cloud.SendOptions) (model.Message, error)
}

// Store persists named conversations.
type Store interface {
	List() ([]string, error)
	Load(name string) (*model.Conversation, error)
	Save(conv *model.Conversation) error
	Delete(name string) error
}

// SettingsStore persists settings changed from inside the loop.
type SettingsStore interface {
	Load() (model.Settings, error)
	Save(settings model.Settings) error
}

// LineReader reads one line of user input. It returns io.EOF at end of
// input and ErrInterrupted on Ctrl+C.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Renderer presents replies and command output.
type Renderer interface {
	Reply(msg model.Message)
	Render(out Output)
	// Waiting shows a busy indicator until the returned func is called.
	Waiting(modelID string) func()
}

// NotifyFunc derives the context for one request. The default cancels it on
// SIGINT.
type NotifyFunc func(ctx context.Context) (context.Context, context.CancelFunc)

func notifyInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

// =============================================================================
// LOOP
// =============================================================================

// Options configure a Loop.
type Options struct {
	Temperature float64
	MaxTokens   int
	Verbosity   model.Verbosity

	// Settings receives /verbosity changes. Nil keeps them in memory.
	Settings SettingsStore

	Logger *zap.Logger
	Notify NotifyFunc
}

// Loop is the interactive chat state machine. It alternates between reading
// input and processing it, one line at a time.
type Loop struct {
	sender   Sender
	store    Store
	in       LineReader
	out      Renderer
	settings SettingsStore
	log      *zap.Logger
	notify   NotifyFunc

	temperature float64
	maxTokens   int
	verbosity   model.Verbosity

	conv      model.Conversation
	sessionID string

	commands map[string]*Command
	ordered  []*Command
}

// New creates a loop starting from conv.
func New(sender Sender, store Store, in LineReader, out Renderer, conv model.Conversation, opts Options) *Loop {
	l := &Loop{
		sender:      sender,
		store:       store,
		in:          in,
		out:         out,
		settings:    opts.Settings,
		log:         opts.Logger,
		notify:      opts.Notify,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		verbosity:   opts.Verbosity,
		conv:        conv,
		sessionID:   uuid.NewString()[:8],
		commands:    make(map[string]*Command),
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	if l.notify == nil {
		l.notify = notifyInterrupt
	}
	if l.verbosity == "" {
		l.verbosity = model.DefaultVerbosity
	}
	if l.conv.Messages == nil {
		l.conv.Messages = []model.Message{}
	}
	l.registerBuiltins()
	return l
}

// Conversation returns the current conversation.
func (l *Loop) Conversation() model.Conversation {
	return l.conv
}

// SessionID is a short id shown for conversations that have no name.
func (l *Loop) SessionID() string {
	return l.sessionID
}

// Verbosity returns the active reply verbosity.
func (l *Loop) Verbosity() model.Verbosity {
	return l.verbosity
}

// Prompt is the input prompt for the current state.
func (l *Loop) Prompt() string {
	return "You: "
}

// Run reads and processes lines until /exit, end of input, or Ctrl+C at
// the prompt. Errors from a single turn are reported and do not end the
// loop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		line, err := l.in.ReadLine(l.Prompt())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrInterrupted) {
				l.out.Render(info("Goodbye!"))
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if IsCommand(line) {
			out := l.Execute(line)
			l.out.Render(out)
			if out.Exit {
				return nil
			}
			continue
		}

		if _, err := l.turn(ctx, line, true); err != nil {
			l.log.Debug("turn failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// RunOnce performs exactly one exchange for text. Only the reply is
// rendered; failures are returned to the caller.
func (l *Loop) RunOnce(ctx context.Context, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, &UsageError{Command: "--message", Usage: "--message <text>", Message: "message is empty"}
	}
	return l.turn(ctx, text, false)
}

// Execute dispatches one slash command line and applies its result.
func (l *Loop) Execute(line string) Output {
	name, args := ParseCommand(line)
	cmd, ok := l.commands[name]
	if !ok {
		return failure(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", name), nil)
	}

	next, out := cmd.Handler(l.conv, args)
	l.conv = next
	return out
}

// =============================================================================
// PROCESSING
// =============================================================================

// turn sends text as a user message. On a provider error the transcript is
// restored to its state before the turn. On interrupt the user message
// stays and no reply is added.
func (l *Loop) turn(ctx context.Context, text string, inline bool) (model.Message, error) {
	before := l.conv

	conv := l.conv
	if conv.IsEmpty() {
		if prompt := l.verbosity.SystemPrompt(); prompt != "" {
			conv = conv.WithMessage(model.NewSystemMessage(prompt))
		}
	}
	conv = conv.WithMessage(model.NewUserMessage(text))

	sendCtx, stop := l.notify(ctx)
	done := func() {}
	if inline {
		done = l.out.Waiting(conv.Model)
	}
	reply, err := l.sender.Send(sendCtx, conv.Transcript(), cloud.SendOptions{
		Model:       conv.Model,
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	})
	done()
	interrupted := sendCtx.Err() != nil && errors.Is(err, context.Canceled)
	stop()

	if err != nil {
		if interrupted {
			l.conv = conv
			if inline {
				l.out.Render(warning("Request interrupted."))
			}
			return model.Message{}, err
		}
		l.conv = before
		if inline {
			l.out.Render(describeSendError(err))
		}
		return model.Message{}, err
	}

	l.conv = conv.WithMessage(reply)
	l.out.Reply(reply)
	l.autoSave(inline)
	return reply, nil
}

func (l *Loop) autoSave(inline bool) {
	if !l.conv.IsNamed() || l.store == nil {
		return
	}
	if err := l.store.Save(&l.conv); err != nil {
		l.log.Warn("auto-save failed", zap.String("conversation", l.conv.Name), zap.Error(err))
		if inline {
			l.out.Render(warning(fmt.Sprintf("Could not auto-save '%s': %v", l.conv.Name, err)))
		}
	}
}

// describeSendError turns a Sender failure into an inline message.
func describeSendError(err error) Output {
	var authErr *cloud.AuthError
	var apiErr *cloud.APIError
	var valErr *cloud.ValidationError

	switch {
	case errors.As(err, &authErr):
		return failure(fmt.Sprintf("Authentication failed: %s. Run 'llmchat config-set' to update your API key.", authErr.Err.Message), err)
	case errors.Is(err, cloud.ErrNotConfigured):
		return failure("No API key configured. Run 'llmchat config-set' first.", err)
	case errors.As(err, &valErr):
		return failure("Invalid request: "+valErr.Error(), err)
	case errors.As(err, &apiErr) && apiErr.IsNetwork():
		return failure("Network error: "+apiErr.Error(), err)
	default:
		return failure("API error: "+err.Error(), err)
	}
}

// =============================================================================
// STARTUP
// =============================================================================

// Open returns the starting conversation for name. An unknown name starts
// a new conversation under that name. Corrupt data starts a fresh unnamed
// conversation and is reported through the returned Output.
func Open(store Store, name, modelID string) (model.Conversation, Output) {
	if name == "" {
		return model.NewConversation("", modelID), Output{}
	}

	conv, err := store.Load(name)
	switch {
	case err == nil:
		return *conv, info(fmt.Sprintf("Loaded conversation '%s' (%d messages).", name, conv.MessageCount()))
	case errors.Is(err, storage.ErrNotFound):
		return model.NewConversation(name, modelID), info(fmt.Sprintf("Starting new conversation '%s'.", name))
	case errors.Is(err, storage.ErrInvalidName):
		return model.NewConversation("", modelID), failure(err.Error(), err)
	default:
		// Unnamed so auto-save cannot overwrite the damaged file.
		return model.NewConversation("", modelID),
			failure(fmt.Sprintf("Could not load '%s': %v. Starting a fresh conversation.", name, err), err)
	}
}

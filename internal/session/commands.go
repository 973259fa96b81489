// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/storage"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Handler runs a command against the current conversation and returns the
// conversation to continue with. A handler that fails returns its input
// unchanged.
type Handler func(conv model.Conversation, args []string) (model.Conversation, Output)

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/q")
	Aliases []string

	// Usage shows argument syntax (e.g., "/save <name>")
	Usage string

	// Description is shown in help
	Description string

	Handler Handler
}

// Register adds a command to the dispatch table under its name and aliases.
func (l *Loop) Register(cmd *Command) {
	l.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		l.commands[alias] = cmd
	}
	l.ordered = append(l.ordered, cmd)
}

// Commands returns the registered commands in registration order.
func (l *Loop) Commands() []*Command {
	out := make([]*Command, len(l.ordered))
	copy(out, l.ordered)
	return out
}

func (l *Loop) registerBuiltins() {
	l.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Usage:       "/help",
		Description: "Show this help message",
		Handler:     l.cmdHelp,
	})
	l.Register(&Command{
		Name:        "/exit",
		Aliases:     []string{"/quit", "/q"},
		Usage:       "/exit",
		Description: "Exit the chat",
		Handler:     l.cmdExit,
	})
	l.Register(&Command{
		Name:        "/clear",
		Usage:       "/clear",
		Description: "Clear conversation history",
		Handler:     l.cmdClear,
	})
	l.Register(&Command{
		Name:        "/save",
		Usage:       "/save <name>",
		Description: "Save the conversation under a name",
		Handler:     l.cmdSave,
	})
	l.Register(&Command{
		Name:        "/load",
		Usage:       "/load <name>",
		Description: "Load a saved conversation",
		Handler:     l.cmdLoad,
	})
	l.Register(&Command{
		Name:        "/list",
		Usage:       "/list",
		Description: "List saved conversations",
		Handler:     l.cmdList,
	})
	l.Register(&Command{
		Name:        "/delete",
		Usage:       "/delete <name>",
		Description: "Delete a saved conversation",
		Handler:     l.cmdDelete,
	})
	l.Register(&Command{
		Name:        "/model",
		Usage:       "/model [id]",
		Description: "Show or switch the model",
		Handler:     l.cmdModel,
	})
	l.Register(&Command{
		Name:        "/history",
		Usage:       "/history",
		Description: "Show the conversation so far",
		Handler:     l.cmdHistory,
	})
	l.Register(&Command{
		Name:        "/verbosity",
		Usage:       "/verbosity <short|medium|long>",
		Description: "Show or set reply length",
		Handler:     l.cmdVerbosity,
	})
	l.Register(&Command{
		Name:        "/vs",
		Usage:       "/vs",
		Description: "Short replies",
		Handler:     l.setVerbosityHandler(model.VerbosityShort),
	})
	l.Register(&Command{
		Name:        "/vm",
		Usage:       "/vm",
		Description: "Medium replies",
		Handler:     l.setVerbosityHandler(model.VerbosityMedium),
	})
	l.Register(&Command{
		Name:        "/vl",
		Usage:       "/vl",
		Description: "Long replies",
		Handler:     l.setVerbosityHandler(model.VerbosityLong),
	})
}

// =============================================================================
// HANDLERS
// =============================================================================

func (l *Loop) cmdHelp(conv model.Conversation, _ []string) (model.Conversation, Output) {
	entries := make([]HelpEntry, 0, len(l.ordered))
	for _, cmd := range l.ordered {
		entries = append(entries, HelpEntry{
			Usage:       cmd.Usage,
			Aliases:     cmd.Aliases,
			Description: cmd.Description,
		})
	}
	return conv, Output{Kind: KindHelp, Help: entries}
}

func (l *Loop) cmdExit(conv model.Conversation, _ []string) (model.Conversation, Output) {
	out := info("Goodbye!")
	out.Exit = true
	return conv, out
}

func (l *Loop) cmdClear(conv model.Conversation, _ []string) (model.Conversation, Output) {
	return conv.Cleared(), success("Conversation history cleared.")
}

func (l *Loop) cmdSave(conv model.Conversation, args []string) (model.Conversation, Output) {
	if len(args) != 1 {
		return conv, usage(l.commands["/save"], "expected exactly one name")
	}
	renamed := conv.Renamed(args[0])
	if err := l.store.Save(&renamed); err != nil {
		return conv, failure(fmt.Sprintf("Could not save conversation: %v", err), err)
	}
	l.log.Debug("conversation saved", zap.String("name", renamed.Name), zap.Int("messages", renamed.MessageCount()))
	return renamed, success(fmt.Sprintf("Conversation saved as '%s'.", renamed.Name))
}

func (l *Loop) cmdLoad(conv model.Conversation, args []string) (model.Conversation, Output) {
	if len(args) != 1 {
		return conv, usage(l.commands["/load"], "expected exactly one name")
	}
	name := args[0]

	loaded, err := l.store.Load(name)
	switch {
	case err == nil:
		return *loaded, success(fmt.Sprintf("Loaded conversation '%s' (%d messages).", name, loaded.MessageCount()))
	case errors.Is(err, storage.ErrNotFound):
		return conv, failure(fmt.Sprintf("Conversation '%s' not found.", name), err)
	case errors.Is(err, storage.ErrCorruptData):
		return conv, failure(fmt.Sprintf("Conversation '%s' is corrupt: %v", name, err), err)
	default:
		return conv, failure(fmt.Sprintf("Could not load conversation '%s': %v", name, err), err)
	}
}

func (l *Loop) cmdList(conv model.Conversation, _ []string) (model.Conversation, Output) {
	names, err := l.store.List()
	if err != nil {
		return conv, failure(fmt.Sprintf("Could not list conversations: %v", err), err)
	}
	if len(names) == 0 {
		return conv, info("No saved conversations.")
	}
	return conv, Output{Kind: KindList, Text: "Saved conversations:", Items: names, Current: conv.Name}
}

func (l *Loop) cmdDelete(conv model.Conversation, args []string) (model.Conversation, Output) {
	if len(args) != 1 {
		return conv, usage(l.commands["/delete"], "expected exactly one name")
	}
	name := args[0]
	if err := l.store.Delete(name); err != nil {
		return conv, failure(fmt.Sprintf("Could not delete conversation '%s': %v", name, err), err)
	}
	if conv.Name == name {
		// Detach so the next auto-save does not recreate the file.
		conv = conv.Renamed("")
	}
	return conv, success(fmt.Sprintf("Conversation '%s' deleted.", name))
}

func (l *Loop) cmdModel(conv model.Conversation, args []string) (model.Conversation, Output) {
	switch len(args) {
	case 0:
		return conv, info("Current model: " + conv.Model)
	case 1:
		return conv.WithModel(args[0]), success("Switched model to " + args[0])
	default:
		return conv, usage(l.commands["/model"], "expected at most one model id")
	}
}

func (l *Loop) cmdHistory(conv model.Conversation, _ []string) (model.Conversation, Output) {
	if conv.IsEmpty() {
		return conv, info("No messages yet.")
	}
	return conv, Output{Kind: KindHistory, Messages: conv.Transcript()}
}

func (l *Loop) cmdVerbosity(conv model.Conversation, args []string) (model.Conversation, Output) {
	switch len(args) {
	case 0:
		return conv, info("Current verbosity: " + string(l.verbosity))
	case 1:
		v, err := model.ParseVerbosity(args[0])
		if err != nil {
			return conv, usage(l.commands["/verbosity"], err.Error())
		}
		return l.applyVerbosity(conv, v)
	default:
		return conv, usage(l.commands["/verbosity"], "expected one level")
	}
}

func (l *Loop) setVerbosityHandler(v model.Verbosity) Handler {
	return func(conv model.Conversation, _ []string) (model.Conversation, Output) {
		return l.applyVerbosity(conv, v)
	}
}

// applyVerbosity switches the level for this session, persists it, and
// rewrites a leading system message so the change takes effect at once.
func (l *Loop) applyVerbosity(conv model.Conversation, v model.Verbosity) (model.Conversation, Output) {
	l.verbosity = v
	conv = conv.WithSystemPrompt(v.SystemPrompt())

	out := success(fmt.Sprintf("Verbosity set to %s.", v))
	if l.settings != nil {
		if err := l.persistVerbosity(v); err != nil {
			l.log.Warn("could not persist verbosity", zap.Error(err))
			out = warning(fmt.Sprintf("Verbosity set to %s for this session (not saved: %v).", v, err))
		}
	}
	return conv, out
}

func (l *Loop) persistVerbosity(v model.Verbosity) error {
	settings, err := l.settings.Load()
	if err != nil {
		// Never write a record that lost its API key.
		return err
	}
	settings.Verbosity = v
	return l.settings.Save(settings)
}

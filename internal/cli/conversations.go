// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations.go - conversations command implementation for llmchat.
//
// Command: conversations [subcommand]
// Short:   Manage saved conversations
// Aliases: conv
//
// Subcommands:
//   list [--long]       List saved conversations
//   show NAME           Print a conversation's messages
//   delete NAME         Delete a conversation
//   export NAME         Write a conversation to a Markdown or JSON file
//
// Examples:
//   llmchat conversations list --long
//   llmchat conv show research
//   llmchat conv delete scratch
//   llmchat conv export research --format json --output ~/exports

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cli-llm-chat/llmchat/internal/export"
	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/session"
	"github.com/cli-llm-chat/llmchat/internal/storage"
)

func newConversationsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List, show, delete or export saved conversations",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.listConversations(false)
		},
	}

	var long bool
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.listConversations(long)
		},
	}
	list.Flags().BoolVarP(&long, "long", "l", false, "Show model, message count and preview")

	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Print a conversation's messages",
		Args:  exactArgs(1, "a conversation name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConversation(args[0])
		},
	}

	del := &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    exactArgs(1, "a conversation name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.deleteConversation(args[0])
		},
	}

	exportOpts := &exportOptions{}
	exp := &cobra.Command{
		Use:   "export NAME",
		Short: "Export a conversation to Markdown or JSON",
		Args:  exactArgs(1, "a conversation name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.exportConversation(args[0], exportOpts)
		},
	}
	exp.Flags().StringVarP(&exportOpts.format, "format", "f", export.FormatMarkdown, "Output format: md or json")
	exp.Flags().StringVarP(&exportOpts.outputDir, "output", "o", ".", "Directory to write the file to")
	exp.Flags().BoolVar(&exportOpts.includeSystem, "include-system", false, "Include the system prompt (Markdown only)")

	cmd.AddCommand(list, show, del, exp)
	return cmd
}

func (a *App) conversations() (*storage.ConversationStore, error) {
	store, err := a.configStore()
	if err != nil {
		return nil, err
	}
	return a.conversationStore(store), nil
}

func (a *App) listConversations(long bool) error {
	store, err := a.conversations()
	if err != nil {
		return err
	}

	if long {
		metas, err := store.ListInfo()
		if err != nil {
			return err
		}
		fmt.Fprint(a.Out, storage.FormatList(metas))
		if len(metas) == 0 {
			fmt.Fprintln(a.Out)
		}
		return nil
	}

	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(a.Out, "No saved conversations.")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(a.Out, name)
	}
	return nil
}

func (a *App) showConversation(name string) error {
	store, err := a.conversations()
	if err != nil {
		return err
	}
	conv, err := store.Load(name)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.Out, TitleStyle.Render(conv.Name))
	fmt.Fprintln(a.Out, RenderLabel("Model:")+conv.Model)
	fmt.Fprintln(a.Out, RenderLabel("Created:")+conv.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(a.Out, RenderLabel("Updated:")+conv.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(a.Out, RenderLabel("Messages:")+fmt.Sprint(conv.MessageCount()))
	fmt.Fprintln(a.Out, RenderSeparator())

	r := NewRenderer(a.Out, false)
	if conv.IsEmpty() {
		r.Render(session.Output{Kind: session.KindInfo, Text: "No messages yet."})
		return nil
	}
	r.Render(session.Output{Kind: session.KindHistory, Messages: visibleMessages(conv)})
	return nil
}

// visibleMessages drops the seeded system prompt, which is not part of
// what the user said or read.
func visibleMessages(conv *model.Conversation) []model.Message {
	out := make([]model.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if m.Role == model.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (a *App) deleteConversation(name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	store, err := a.conversations()
	if err != nil {
		return err
	}
	if !store.Exists(name) {
		return fmt.Errorf("conversation '%s': %w", name, storage.ErrNotFound)
	}
	if err := store.Delete(name); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, SuccessStyle.Render(fmt.Sprintf("Conversation '%s' deleted.", name)))
	return nil
}

type exportOptions struct {
	format        string
	outputDir     string
	includeSystem bool
}

func (a *App) exportConversation(name string, opts *exportOptions) error {
	store, err := a.conversations()
	if err != nil {
		return err
	}
	conv, err := store.Load(name)
	if err != nil {
		return err
	}

	exportOpts := export.DefaultOptions()
	exportOpts.OutputDir = opts.outputDir
	exportOpts.IncludeSystem = opts.includeSystem

	exporter, err := export.ForFormat(opts.format, exportOpts)
	if err != nil {
		return &UsageError{Err: err}
	}
	path, err := export.ExportToFile(conv, exporter, exportOpts)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, SuccessStyle.Render("Exported '"+name+"' to "+path))
	return nil
}

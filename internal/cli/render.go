// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Terminal presentation of chat replies and command output.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/session"
)

// helpUsageWidth is the column width of the usage column in /help.
const helpUsageWidth = 26

// Renderer writes replies and command output to a terminal or pipe.
// It implements session.Renderer.
type Renderer struct {
	w      io.Writer
	styled bool
	labels bool
	md     *glamour.TermRenderer
}

// NewRenderer creates a renderer. Styled renderers format replies as
// markdown and show a busy indicator; plain renderers print raw text.
func NewRenderer(w io.Writer, styled bool) *Renderer {
	r := &Renderer{w: w, styled: styled}
	if styled {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(GetTerminalWidth()-4),
		)
		if err == nil {
			r.md = md
		}
	}
	return r
}

// WithLabels prefixes replies with the speaker, as in an interactive chat.
func (r *Renderer) WithLabels() *Renderer {
	r.labels = true
	return r
}

// Reply prints an assistant message.
func (r *Renderer) Reply(msg model.Message) {
	if r.labels {
		fmt.Fprintln(r.w, AssistantStyle.Render(msg.Role.DisplayName()+":"))
	}
	fmt.Fprintln(r.w, r.markdown(msg.Content))
	if r.labels {
		fmt.Fprintln(r.w)
	}
}

func (r *Renderer) markdown(content string) string {
	if r.md == nil {
		return content
	}
	out, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// Waiting prints a dim busy line and returns a func that erases it.
func (r *Renderer) Waiting(modelID string) func() {
	if !r.styled {
		return func() {}
	}
	fmt.Fprint(r.w, DimStyle.Render(fmt.Sprintf("Thinking (%s)...", modelID)))
	return func() {
		o := termenv.NewOutput(r.w)
		o.ClearLine()
		fmt.Fprint(r.w, "\r")
	}
}

// Render prints command output according to its kind.
func (r *Renderer) Render(out session.Output) {
	switch out.Kind {
	case session.KindNone:
	case session.KindInfo:
		fmt.Fprintln(r.w, out.Text)
	case session.KindSuccess:
		fmt.Fprintln(r.w, SuccessStyle.Render(out.Text))
	case session.KindWarning:
		fmt.Fprintln(r.w, WarningStyle.Render("Warning: ")+out.Text)
	case session.KindError:
		fmt.Fprintln(r.w, ErrorStyle.Render("Error: ")+out.Text)
	case session.KindList:
		r.renderList(out)
	case session.KindHelp:
		r.renderHelp(out.Help)
	case session.KindHistory:
		r.renderHistory(out.Messages)
	}
}

func (r *Renderer) renderList(out session.Output) {
	if out.Text != "" {
		fmt.Fprintln(r.w, TitleStyle.Render(out.Text))
	}
	for _, item := range out.Items {
		if item == out.Current && out.Current != "" {
			fmt.Fprintf(r.w, "  * %s %s\n", CommandStyle.Render(item), DimStyle.Render("(current)"))
			continue
		}
		fmt.Fprintf(r.w, "    %s\n", item)
	}
}

func (r *Renderer) renderHelp(entries []session.HelpEntry) {
	fmt.Fprintln(r.w, TitleStyle.Render("Commands:"))
	for _, e := range entries {
		line := "  " + CommandStyle.Render(runewidth.FillRight(e.Usage, helpUsageWidth)) + e.Description
		if len(e.Aliases) > 0 {
			line += DimStyle.Render(" (" + strings.Join(e.Aliases, ", ") + ")")
		}
		fmt.Fprintln(r.w, line)
	}
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, DimStyle.Render("Anything not starting with / is sent to the model."))
}

func (r *Renderer) renderHistory(messages []model.Message) {
	for _, msg := range messages {
		label := msg.Role.DisplayName() + ":"
		switch msg.Role {
		case model.RoleUser:
			label = UserStyle.Render(label)
		case model.RoleAssistant:
			label = AssistantStyle.Render(label)
		default:
			label = DimStyle.Render(label)
		}
		fmt.Fprintf(r.w, "%s %s\n", label, msg.Content)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// input.go - Line input for the chat loop and one-off prompts.

package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/cli-llm-chat/llmchat/internal/session"
	"github.com/cli-llm-chat/llmchat/internal/util"
)

const (
	// HistoryFileName holds previously entered lines under the config dir.
	HistoryFileName = "command_history"

	// maxHistoryEntries bounds the history file.
	maxHistoryEntries = 500
)

// =============================================================================
// LINE EDITOR (TTY)
// =============================================================================

// lineEditor reads chat input with history and tab completion.
type lineEditor struct {
	state       *liner.State
	historyPath string
	log         *zap.Logger

	// complete is set once the loop exists.
	complete func(line string) []string
}

func newLineEditor(configDir string, log *zap.Logger) *lineEditor {
	e := &lineEditor{
		state:       liner.NewLiner(),
		historyPath: filepath.Join(configDir, HistoryFileName),
		log:         log,
	}
	e.state.SetCtrlCAborts(true)
	e.state.SetCompleter(func(line string) []string {
		if e.complete == nil {
			return nil
		}
		return e.complete(line)
	})

	if f, err := os.Open(e.historyPath); err == nil {
		if _, err := e.state.ReadHistory(f); err != nil {
			log.Debug("failed to read history", zap.String("path", e.historyPath), zap.Error(err))
		}
		f.Close()
	}
	return e
}

// ReadLine implements session.LineReader.
func (e *lineEditor) ReadLine(prompt string) (string, error) {
	line, err := e.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", session.ErrInterrupted
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		e.state.AppendHistory(line)
	}
	return line, nil
}

// Close restores the terminal and writes the history file.
func (e *lineEditor) Close() error {
	var buf bytes.Buffer
	if _, err := e.state.WriteHistory(&buf); err != nil {
		e.log.Debug("failed to serialize history", zap.Error(err))
	} else if err := util.AtomicWriteFile(e.historyPath, trimHistory(buf.Bytes()), 0o600, 0o700); err != nil {
		e.log.Debug("failed to save history", zap.String("path", e.historyPath), zap.Error(err))
	}
	return e.state.Close()
}

// trimHistory keeps the newest maxHistoryEntries lines.
func trimHistory(data []byte) []byte {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) <= maxHistoryEntries {
		return data
	}
	return []byte(strings.Join(lines[len(lines)-maxHistoryEntries:], "\n") + "\n")
}

// =============================================================================
// PLAIN READER (PIPES)
// =============================================================================

// plainReader reads lines from a non-terminal input. The prompt is still
// written so transcripts of piped sessions stay readable.
type plainReader struct {
	r   *bufio.Reader
	out io.Writer
}

// ReadLine implements session.LineReader.
func (p *plainReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		fmt.Fprintln(p.out)
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// =============================================================================
// ONE-OFF PROMPTS
// =============================================================================

// stdinTerminal reports whether the app's input is an interactive terminal.
func (a *App) stdinTerminal() bool {
	f, ok := a.In.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// stdoutStyled reports whether output should get colors and markdown.
func (a *App) stdoutStyled() bool {
	f, ok := a.Out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) && ColorsEnabled()
}

// lines returns the shared buffered reader over a.In.
func (a *App) lines() *bufio.Reader {
	if a.reader == nil {
		a.reader = bufio.NewReader(a.In)
	}
	return a.reader
}

// promptLine asks a question and returns the trimmed answer. End of input
// counts as an empty answer.
func (a *App) promptLine(prompt string) (string, error) {
	fmt.Fprint(a.Out, prompt)
	line, err := a.lines().ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(a.Out)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret asks for a secret without echo on a terminal.
func (a *App) promptSecret(prompt string) (string, error) {
	f, ok := a.In.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.promptLine(prompt)
	}
	fmt.Fprint(a.Out, prompt)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.Out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

// confirm asks a yes/no question. Anything but y or yes is no.
func (a *App) confirm(prompt string) bool {
	answer, err := a.promptLine(prompt)
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

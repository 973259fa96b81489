// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sort"
	"strings"
)

// Complete returns full-line candidates for tab completion of line.
// Command names complete from the dispatch table; /load and /delete
// complete saved conversation names; /verbosity completes levels.
func (l *Loop) Complete(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}

	name, rest, hasArg := strings.Cut(line, " ")
	if !hasArg {
		return l.completeCommands(strings.ToLower(name))
	}

	cmd, ok := l.commands[strings.ToLower(name)]
	if !ok || strings.Contains(strings.TrimLeft(rest, " "), " ") {
		return nil
	}
	partial := strings.TrimLeft(rest, " ")

	var values []string
	switch cmd.Name {
	case "/load", "/delete":
		if l.store == nil {
			return nil
		}
		names, err := l.store.List()
		if err != nil {
			return nil
		}
		values = names
	case "/verbosity":
		values = []string{"short", "medium", "long"}
	default:
		return nil
	}

	var out []string
	for _, v := range values {
		if strings.HasPrefix(v, partial) {
			out = append(out, name+" "+v)
		}
	}
	return out
}

func (l *Loop) completeCommands(partial string) []string {
	var out []string
	for name := range l.commands {
		if strings.HasPrefix(name, partial) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// llmchat - Chat with OpenRouter models from the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/cli-llm-chat/llmchat/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	app := cli.NewApp()
	err := cli.NewRootCommand(app).Execute()
	if err != nil {
		cli.DisplayError(app.Err, err)
	}
	os.Exit(cli.ExitCode(err))
}

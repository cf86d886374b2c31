// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for chatbi.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - App: Loaded config, logger, transcript storage and backend client
//
// # Usage
//
//	cmd, args := cli.Parse()
//	app, err := cli.NewApp(cmd, args)
//	if err != nil {
//	    cli.DisplayError(err, args.JSON)
//	    os.Exit(cli.GetExitCode(err))
//	}
//	defer app.Close()
//	err = app.Run(ctx, cmd)
//
// # Commands Overview
//
//   - ask: One-shot query, prints the reconciled answer
//   - chat: Line-based REPL over one session
//   - history: List, show, export or clear saved transcripts
//   - status, models: Backend health and model listing
//   - config: Dotted-key access to the config file
//
// Commands that print data accept --json.
package cli

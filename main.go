// chatbi - A terminal client for a streaming business-intelligence chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatbi/internal/cli"
	"github.com/jeranaias/chatbi/internal/config"
	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/ui/chat"
	"github.com/jeranaias/chatbi/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
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
	cmd, args := cli.Parse()

	// Help and version need neither config nor storage
	switch cmd {
	case cli.CmdHelp:
		cli.FprintUsage(os.Stdout)
		return
	case cli.CmdVersion:
		if err := cli.WriteVersion(os.Stdout, args.JSON); err != nil {
			exit(err, args.JSON)
		}
		return
	}

	if err := run(cmd, args); err != nil {
		exit(err, args.JSON)
	}
}

func run(cmd cli.Command, args cli.Args) error {
	app, err := cli.NewApp(cmd, args)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd == cli.CmdTUI {
		return runTUI(ctx, app)
	}
	return app.Run(ctx, cmd)
}

// exit reports err and terminates with its exit code.
func exit(err error, jsonMode bool) {
	// ask --json already printed the failed turn
	var turnErr *cli.TurnFailedError
	if !(jsonMode && errors.As(err, &turnErr)) {
		cli.DisplayError(err, jsonMode)
	}
	os.Exit(cli.GetExitCode(err))
}

// runTUI starts the TUI interface.
func runTUI(ctx context.Context, app *cli.App) error {
	kind, err := app.Kind()
	if err != nil {
		return err
	}
	sess, err := app.OpenSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	m := chat.New(sess, chat.Options{
		Theme:        styles.NewTheme(),
		Mode:         kind,
		WordWrap:     app.Config.UI.WordWrap,
		BaseURL:      app.Client.BaseURL(),
		InitialQuery: app.Args.Query,
		Context:      ctx,
	})

	// Create the Bubble Tea program
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(), // Use alternate screen buffer
		tea.WithContext(ctx),
	)

	// Store changes reach the program through the forwarder, never directly:
	// observers run under the session lock and p.Send blocks.
	fwd := chat.NewForwarder(p.Send)
	go fwd.Run()
	defer fwd.Close()

	for _, k := range model.Kinds {
		unsubscribe := sess.Subscribe(k, fwd.Observe)
		defer unsubscribe()
	}

	if watcher := watchConfig(app, p); watcher != nil {
		defer watcher.Close()
	}

	app.Logger.Info("tui", "starting", map[string]interface{}{
		"session": sess.ID(),
		"mode":    string(kind),
	})

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running chatbi: %w", err)
	}
	return nil
}

// watchConfig reloads the config file on change and tells the program. It
// returns nil when there is no file to watch.
func watchConfig(app *cli.App, p *tea.Program) *config.Watcher {
	if app.ConfigPath == "" {
		return nil
	}
	if _, err := os.Stat(app.ConfigPath); err != nil {
		return nil
	}
	watcher, err := config.Watch(app.ConfigPath, 0, func(cfg *config.Config, err error) {
		if err != nil {
			app.Logger.Warn("tui", "config reload failed", map[string]interface{}{"error": err.Error()})
		}
		p.Send(chat.ConfigReloadedMsg{Config: cfg, Error: err})
	})
	if err != nil {
		app.Logger.Warn("tui", "config watch unavailable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return watcher
}

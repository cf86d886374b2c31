// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared wiring for the chatbi commands.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/jeranaias/chatbi/internal/config"
	"github.com/jeranaias/chatbi/internal/logging"
	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/session"
	"github.com/jeranaias/chatbi/internal/storage"
	"github.com/jeranaias/chatbi/internal/stream"
)

const logModule = "cli"

// App holds everything a command needs. Build it with NewApp and release it
// with Close.
type App struct {
	Args       Args
	Config     *config.Config
	ConfigPath string
	Logger     *logging.ZapLogger
	KV         storage.KV
	Bridge     *storage.Bridge
	Client     *stream.Client

	// In supplies the ask query when none is given on the command line.
	// Nil unless stdin is a pipe.
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// NewApp loads configuration and opens storage and the backend client.
func NewApp(cmd Command, args Args) (*App, error) {
	var (
		cfg *config.Config
		err error
	)
	configPath := args.ConfigPath
	if configPath != "" {
		if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
			// config set creates it
			cfg = config.Default()
			cfg.ApplyEnvOverrides()
			cfg.SetDefaults()
			err = cfg.Validate()
		} else {
			cfg, err = config.LoadFromPath(configPath)
		}
	} else {
		cfg, err = config.Load()
		configPath, _ = config.ActivePath()
	}
	if err != nil {
		return nil, err
	}
	if args.Model != "" {
		cfg.Server.Model = args.Model
	}
	logOpts := logging.Options{
		File:  cfg.Log.File,
		Level: cfg.Log.Level,
		// The TUI owns the terminal; console logs would corrupt it
		Console: (cfg.Log.Console || args.Verbose) && cmd != CmdTUI,
	}
	if args.Verbose {
		logOpts.Level = "debug"
	}
	logger, err := logging.NewZapLogger(logOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	kv, err := storage.OpenKV(storage.Options{
		Backend:    cfg.Storage.Backend,
		Dir:        cfg.Storage.Dir,
		SQLitePath: cfg.Storage.SQLitePath,
	})
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("failed to open transcript storage: %w", err)
	}

	client, err := stream.NewClient(stream.Options{
		BaseURL:        cfg.Server.BaseURL,
		QueryPath:      cfg.Server.QueryPath,
		Timeout:        cfg.Server.Timeout(),
		MaxFrameBytes:  cfg.Stream.MaxFrameBytes,
		OpensPerSecond: cfg.Stream.OpensPerSecond,
		OpenBurst:      cfg.Stream.OpenBurst,
		Logger:         logger,
	})
	if err != nil {
		kv.Close()
		logger.Sync()
		return nil, err
	}

	logger.Debug(logModule, "app ready", map[string]interface{}{
		"command":  cmd.String(),
		"base_url": client.BaseURL(),
		"model":    cfg.Server.Model,
		"storage":  cfg.Storage.Backend,
	})

	app := &App{
		Args:       args,
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger,
		KV:         kv,
		Bridge:     storage.NewBridge(kv, logger),
		Client:     client,
		Out:        os.Stdout,
		Err:        os.Stderr,
	}
	if !IsTTY() {
		app.In = os.Stdin
	}
	return app, nil
}

// OpenSession opens the session selected by --session / --new-session, or
// resumes the remembered one.
func (a *App) OpenSession() (*session.Session, error) {
	return session.New(session.Options{
		SessionID:            a.Args.SessionID,
		NewSession:           a.Args.NewSession,
		Opener:               session.ClientOpener(a.Client),
		Bridge:               a.Bridge,
		Model:                a.Config.Server.Model,
		DecodeErrorsFailTurn: a.Config.Stream.DecodeErrorsFailTurn,
		Logger:               a.Logger,
	})
}

// Kind returns the transcript selected on the command line, falling back to
// ui.default_mode.
func (a *App) Kind() (model.Kind, error) {
	if a.Args.Kind == "" {
		return a.Config.DefaultKind(), nil
	}
	kind, err := model.ParseKind(a.Args.Kind)
	if err != nil {
		return "", NewValidationError("kind", a.Args.Kind, "want agent or analysis")
	}
	return kind, nil
}

// Close releases storage and flushes the logger.
func (a *App) Close() error {
	var err error
	if a.KV != nil {
		err = a.KV.Close()
	}
	if a.Logger != nil {
		a.Logger.Sync()
	}
	return err
}

// Run executes a non-interactive command. The TUI is started by main.
func (a *App) Run(ctx context.Context, cmd Command) error {
	switch cmd {
	case CmdAsk:
		return a.RunAsk(ctx)
	case CmdChat:
		return a.RunChat(ctx)
	case CmdHistory, CmdExport:
		return a.RunHistory()
	case CmdStatus:
		return a.RunStatus(ctx)
	case CmdModels:
		return a.RunModels(ctx)
	case CmdConfig:
		return a.RunConfig()
	case CmdVersion:
		return WriteVersion(a.Out, a.Args.JSON)
	case CmdHelp:
		FprintUsage(a.Out)
		return nil
	}
	return fmt.Errorf("command %s is not handled by Run", cmd)
}

// WriteVersion writes version information to w, as JSON when jsonMode is set.
func WriteVersion(w io.Writer, jsonMode bool) error {
	if jsonMode {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Write(w)
	}
	fmt.Fprintf(w, "chatbi version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	return nil
}

// respond writes data as a JSON response when --json is set. It reports
// whether it did.
func (a *App) respond(cmd Command, data interface{}) (bool, error) {
	if !a.Args.JSON {
		return false, nil
	}
	return true, NewJSONResponse(cmd.String(), data).Write(a.Out)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for chatbi.
//
// Command: config [subcommand]
//
// Subcommands:
//
//	show (default)      Display the effective configuration
//	get <key>           Print one value
//	set <key> <value>   Update the config file
//	path                Show configuration file path
//
// Examples:
//
//	chatbi config set server.base_url http://bi.internal:8000
//	chatbi config set storage.backend sqlite
//	chatbi config get server.model
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/chatbi/internal/config"
)

// RunConfig handles "chatbi config".
func (a *App) RunConfig() error {
	switch a.Args.Subcommand {
	case "", "show", "list":
		return a.configShow()
	case "get":
		return a.configGet()
	case "set":
		return a.configSet()
	case "path":
		if handled, err := a.respond(CmdConfig, ConfigData{Path: a.ConfigPath}); handled {
			return err
		}
		fmt.Fprintln(a.Out, a.ConfigPath)
		return nil
	default:
		return &ValidationError{
			Field:   "subcommand",
			Value:   a.Args.Subcommand,
			Reason:  "unknown config subcommand",
			Example: "chatbi config [show|get KEY|set KEY VALUE|path]",
		}
	}
}

// configShow prints every key of the effective configuration, environment
// overrides included.
func (a *App) configShow() error {
	if handled, err := a.respond(CmdConfig, a.Config); handled {
		return err
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("chatbi configuration"))
	section := ""
	for _, key := range config.GetAllKeys() {
		value, err := a.Config.Get(key)
		if err != nil {
			continue
		}
		if head, _, found := strings.Cut(key, "."); found && head != section {
			section = head
			fmt.Fprintln(a.Out, SectionStyle.Render("["+section+"]"))
		}
		fmt.Fprintf(a.Out, "%s %s\n", LabelStyle.Width(30).Render(key), ValueStyle.Render(fmt.Sprint(value)))
	}
	fmt.Fprintf(a.Out, "\n%s %s\n", DimStyle.Render("File:"), a.ConfigPath)
	return nil
}

func (a *App) configGet() error {
	if a.Args.ConfigKey == "" {
		return ErrMissingArgument("key", "chatbi config get server.model")
	}
	value, err := a.Config.Get(a.Args.ConfigKey)
	if err != nil {
		return ErrNotFound("config key", a.Args.ConfigKey)
	}
	if handled, err := a.respond(CmdConfig, ConfigData{Key: a.Args.ConfigKey, Value: value}); handled {
		return err
	}
	fmt.Fprintln(a.Out, value)
	return nil
}

// configSet updates the file on disk. It starts from the file contents, not
// the effective config, so environment overrides are never written back.
func (a *App) configSet() error {
	if a.Args.ConfigKey == "" || a.Args.ConfigVal == "" {
		return ErrMissingArgument("key and value", "chatbi config set server.model qwen-max")
	}
	path := a.ConfigPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}
	isJSON := strings.HasSuffix(strings.ToLower(path), ".json")

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		var loadErr error
		if isJSON {
			loadErr = config.LoadJSON(cfg, path)
		} else {
			loadErr = config.LoadTOML(cfg, path)
		}
		if loadErr != nil {
			return NewCommandError("config", "set", "could not read "+path, loadErr)
		}
	}

	if err := cfg.Set(a.Args.ConfigKey, a.Args.ConfigVal); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			return ErrNotFound("config key", a.Args.ConfigKey)
		}
		return NewValidationError(a.Args.ConfigKey, a.Args.ConfigVal, err.Error())
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	var err error
	if isJSON {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	if err != nil {
		return NewCommandError("config", "set", "could not write "+path, err)
	}

	value, _ := cfg.Get(a.Args.ConfigKey)
	a.Logger.Info(logModule, "config updated", map[string]interface{}{
		"key":  a.Args.ConfigKey,
		"path": path,
	})
	if handled, err := a.respond(CmdConfig, ConfigData{Key: a.Args.ConfigKey, Value: value, Path: path}); handled {
		return err
	}
	fmt.Fprintf(a.Out, "%s %s = %v\n", RenderStatus("ok"), a.Args.ConfigKey, value)
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/chatbi/internal/config"
	"github.com/jeranaias/chatbi/internal/stream"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"list", "--limit", "5"},
			wantSub: "list",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("limit") != "5" {
					t.Errorf("Flag(limit) = %q, want %q", p.Flag("limit"), "5")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"export", "--format=json"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("format") != "json" {
					t.Errorf("Flag(format) = %q, want %q", p.Flag("format"), "json")
				}
			},
		},
		{
			name:    "boolean flag at end",
			args:    []string{"clear", "--confirm"},
			wantSub: "clear",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("confirm") {
					t.Error("BoolFlag(confirm) should be true")
				}
			},
		},
		{
			name:    "known boolean does not swallow the next word",
			args:    []string{"--analysis", "monthly", "sales"},
			bools:   []string{"analysis"},
			wantSub: "monthly",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("analysis") {
					t.Error("BoolFlag(analysis) should be true")
				}
				if got := JoinPositionalArgs(p, 0); got != "monthly sales" {
					t.Errorf("JoinPositionalArgs = %q, want %q", got, "monthly sales")
				}
			},
		},
		{
			name:    "unknown flag takes a value",
			args:    []string{"--analysis", "monthly", "sales"},
			wantSub: "sales",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("analysis") != "monthly" {
					t.Errorf("Flag(analysis) = %q, want %q", p.Flag("analysis"), "monthly")
				}
			},
		},
		{
			name:    "multiple positional args",
			args:    []string{"show", "3f2a", "extra"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 3 {
					t.Errorf("PositionalCount() = %d, want 3", p.PositionalCount())
				}
				if p.Positional(1) != "3f2a" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "3f2a")
				}
				if p.Positional(9) != "" {
					t.Errorf("Positional(9) = %q, want empty", p.Positional(9))
				}
			},
		},
		{
			name:    "explicit boolean value",
			args:    []string{"--confirm=false"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("confirm") {
					t.Error("BoolFlag(confirm) should be false")
				}
				if !p.HasFlag("confirm") {
					t.Error("HasFlag(confirm) should be true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			if p.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_FlagIntOrDefault(t *testing.T) {
	tests := []struct {
		args []string
		want int
	}{
		{[]string{"--limit", "10"}, 10},
		{[]string{"--limit", "ten"}, 3},
		{[]string{}, 3},
	}
	for _, tt := range tests {
		p := NewArgParser(tt.args)
		if got := p.FlagIntOrDefault("limit", 3); got != tt.want {
			t.Errorf("FlagIntOrDefault(%v) = %d, want %d", tt.args, got, tt.want)
		}
	}
}

func TestArgParser_FlagOrDefault(t *testing.T) {
	p := NewArgParser([]string{"-o", "out.md"})
	if got := p.FlagOrDefault("o", "-"); got != "out.md" {
		t.Errorf("FlagOrDefault(o) = %q, want %q", got, "out.md")
	}
	if got := p.FlagOrDefault("format", "md"); got != "md" {
		t.Errorf("FlagOrDefault(format) = %q, want %q", got, "md")
	}
}

func TestArgParser_EmptyArgs(t *testing.T) {
	p := NewArgParser(nil)
	if p.Subcommand() != "" || p.PositionalCount() != 0 || len(p.PositionalFrom(0)) != 0 {
		t.Error("empty parser should have no positional args")
	}
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		check   func(*testing.T, Args)
	}{
		{
			name:    "no args starts the TUI",
			argv:    nil,
			wantCmd: CmdTUI,
		},
		{
			name:    "ask with analysis flag",
			argv:    []string{"ask", "--analysis", "monthly", "sales"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "analysis", a.Kind)
				assert.Equal(t, "monthly sales", a.Query)
			},
		},
		{
			name:    "ask with kind and files",
			argv:    []string{"--json", "ask", "--kind", "agent", "-f", "a.csv, b.csv", "top", "customers"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.Equal(t, "agent", a.Kind)
				assert.Equal(t, []string{"a.csv", "b.csv"}, a.Files)
				assert.Equal(t, "top customers", a.Query)
			},
		},
		{
			name:    "global flags anywhere",
			argv:    []string{"chat", "-a", "--model=qwen-max", "--session", "s1", "--new-session", "-v"},
			wantCmd: CmdChat,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "analysis", a.Kind)
				assert.Equal(t, "qwen-max", a.Model)
				assert.Equal(t, "s1", a.SessionID)
				assert.True(t, a.NewSession)
				assert.True(t, a.Verbose)
			},
		},
		{
			name:    "history show with target",
			argv:    []string{"history", "show", "3f2a", "--kind", "analysis"},
			wantCmd: CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "show", a.Subcommand)
				assert.Equal(t, "3f2a", a.Target)
				assert.Equal(t, "analysis", a.Kind)
			},
		},
		{
			name:    "history clear all",
			argv:    []string{"history", "clear", "--all", "--confirm"},
			wantCmd: CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "clear", a.Subcommand)
				assert.True(t, a.All)
				assert.True(t, a.Confirm)
				assert.Empty(t, a.Target)
			},
		},
		{
			name:    "export alias",
			argv:    []string{"export", "--format", "json", "-o", "out.json"},
			wantCmd: CmdExport,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "export", a.Subcommand)
				assert.Equal(t, "json", a.Format)
				assert.Equal(t, "out.json", a.Output)
				assert.Empty(t, a.Target)
			},
		},
		{
			name:    "config set joins the value",
			argv:    []string{"--config", "/tmp/c.toml", "config", "set", "server.model", "qwen-max"},
			wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "/tmp/c.toml", a.ConfigPath)
				assert.Equal(t, "set", a.Subcommand)
				assert.Equal(t, "server.model", a.ConfigKey)
				assert.Equal(t, "qwen-max", a.ConfigVal)
			},
		},
		{
			name:    "status alias",
			argv:    []string{"s"},
			wantCmd: CmdStatus,
		},
		{
			name:    "models",
			argv:    []string{"models"},
			wantCmd: CmdModels,
		},
		{
			name:    "version flag",
			argv:    []string{"--version"},
			wantCmd: CmdVersion,
		},
		{
			name:    "help flag",
			argv:    []string{"-h"},
			wantCmd: CmdHelp,
		},
		{
			name:    "unknown word is a TUI prompt",
			argv:    []string{"How", "many", "orders?"},
			wantCmd: CmdTUI,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "How many orders?", a.Query)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseArgs(tt.argv)
			assert.Equal(t, tt.wantCmd, cmd)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "ask", CmdAsk.String())
	assert.Equal(t, "history", CmdHistory.String())
	assert.Equal(t, "tui", CmdTUI.String())
}

// =============================================================================
// ERROR TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", ErrMissingArgument("query", "chatbi ask q"), ExitUsageError},
		{"not found", ErrNotFound("session", "abc"), ExitNotFoundError},
		{"turn failed", &TurnFailedError{Message: "boom"}, ExitTurnFailed},
		{"wrapped turn failed", fmt.Errorf("ask: %w", &TurnFailedError{Message: "boom"}), ExitTurnFailed},
		{"config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "log.level", Message: "bad"}}), ExitConfigError},
		{"deadline", fmt.Errorf("health: %w", context.DeadlineExceeded), ExitTimeoutError},
		{"transport", NewCommandError("models", "list", "unreachable", &stream.TransportError{Err: errors.New("refused")}), ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayErrorJSON(t *testing.T) {
	var sb strings.Builder
	DisplayErrorJSON(&sb, ErrNotFound("session", "abc"))

	out := sb.String()
	assert.Contains(t, out, `"success": false`)
	assert.Contains(t, out, `"error_type": "not_found_error"`)
	assert.Contains(t, out, `"id": "abc"`)
}

// =============================================================================
// TERMINAL TESTS (terminal.go, styles.go)
// =============================================================================

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"fits", "short line", 20, "short line"},
		{"breaks on spaces", "aaa bbb ccc", 7, "aaa bbb\nccc"},
		{"keeps newlines", "a\nb", 10, "a\nb"},
		{"wide characters", "销售数据销售数据", 8, "销售数据\n销售数据"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WrapText(tt.text, tt.width))
		})
	}
}

func TestRenderStatus(t *testing.T) {
	// Tests do not run on a TTY, so styles render without color codes.
	assert.Equal(t, "[OK]", RenderStatus("complete"))
	assert.Equal(t, "[FAIL]", RenderStatus("failed"))
	assert.Equal(t, "[...]", RenderStatus("streaming"))
	assert.Equal(t, "[ODD]", RenderStatus("odd"))
}

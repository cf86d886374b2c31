// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for chatbi.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdHistory
	CmdExport
	CmdStatus
	CmdModels
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name used in JSON output.
func (c Command) String() string {
	switch c {
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdHistory:
		return "history"
	case CmdExport:
		return "export"
	case CmdStatus:
		return "status"
	case CmdModels:
		return "models"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "tui"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool // Output in JSON format
	NewSession bool // Ignore the remembered session and start a fresh one
	ConfigPath string
	Model      string
	SessionID  string

	// Command-specific
	Kind       string // "agent", "analysis" or "" for the configured default
	Query      string
	Files      []string
	Subcommand string
	Target     string // Session id for history show/export/clear
	ConfigKey  string
	ConfigVal  string
	Format     string
	Output     string
	Confirm    bool
	All        bool
	Limit      int

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `chatbi - streaming chat and data-analysis client

Usage:
  chatbi                         Start TUI (default)
  chatbi "question"              Start TUI and ask the question
  chatbi ask [flags] "question"  Ask a single question
  chatbi chat [--analysis]       Interactive line chat
  chatbi history [subcommand]    Saved transcripts
  chatbi export [flags]          Export the current session (history export)
  chatbi status, s               Backend health
  chatbi models                  Models the backend can query
  chatbi config [subcommand]     Configuration
  chatbi version                 Version information

Ask Flags:
  -a, --analysis        Send the query to the data-analysis transcript
      --agent           Send the query to the agent transcript
      --kind KIND       agent or analysis
  -f, --file PATHS      Attach files (comma separated)

History Commands:
  chatbi history list               List saved sessions (default)
    --limit N                       Show at most N sessions
  chatbi history show [ID]          Print a transcript (default: current session)
  chatbi history export [ID]        Export a transcript
    --format md|json                Export format (default: md)
    -o, --output FILE               Write to FILE (default: stdout)
  chatbi history clear [ID]         Delete one session
  chatbi history clear --all --confirm
                                    Delete every saved session
    --kind agent|analysis           Transcript kind (default: both for clear)

Config Commands:
  chatbi config show                Show the effective configuration
  chatbi config get KEY             Print one value (e.g. server.model)
  chatbi config set KEY VALUE       Update the config file
  chatbi config path                Print the config file location

Global Flags:
  -v, --verbose         Mirror logs to stderr at debug level
  -q, --quiet           Suppress progress output
      --json            Output in JSON format
      --config PATH     Use PATH instead of ~/.chatbi/config.toml
      --model NAME      Override server.model
      --session ID      Resume or create session ID
      --new-session     Start a new session instead of resuming

TUI Keys:
  Enter    Submit      Tab      Switch agent/analysis (while idle)
  Ctrl+R   Reset       Ctrl+C   Quit

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	FprintUsage(os.Stdout)
}

// FprintUsage writes the usage text to w.
func FprintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	WriteVersion(os.Stdout, false)
}

// Parse parses os.Args and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name).
func ParseArgs(argv []string) (Command, Args) {
	// Parse global flags first
	remaining, parsedArgs := parseGlobalFlags(argv)

	// If no remaining args, default to TUI
	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	// Check first argument for command
	first := remaining[0]
	cmd := strings.ToLower(first)
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		parseQueryArgs(&parsedArgs, remaining)
		return CmdTUI, parsedArgs

	case "ask":
		parseQueryArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "chat":
		parseQueryArgs(&parsedArgs, remaining)
		return CmdChat, parsedArgs

	case "history", "sessions":
		parseHistoryArgs(&parsedArgs, remaining)
		return CmdHistory, parsedArgs

	case "export":
		parseHistoryArgs(&parsedArgs, append([]string{"export"}, remaining...))
		return CmdExport, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "models":
		return CmdModels, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Unknown command is a direct prompt for the TUI
		parsedArgs.Raw = append([]string{first}, remaining...)
		parseQueryArgs(&parsedArgs, parsedArgs.Raw)
		return CmdTUI, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	parsedArgs := Args{}

	takeValue := func(i *int) string {
		if *i+1 < len(args) {
			*i++
			return args[*i]
		}
		return ""
	}

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--new-session":
			parsedArgs.NewSession = true
		case "--config":
			parsedArgs.ConfigPath = takeValue(&i)
		case "--model", "-m":
			parsedArgs.Model = takeValue(&i)
		case "--session":
			parsedArgs.SessionID = takeValue(&i)
		default:
			switch {
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			case strings.HasPrefix(arg, "--model="):
				parsedArgs.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--session="):
				parsedArgs.SessionID = strings.TrimPrefix(arg, "--session=")
			default:
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// kindBoolFlags are the flags that select a transcript without a value.
var kindBoolFlags = []string{"analysis", "a", "agent", "confirm", "all", "y"}

// applyKindFlags sets args.Kind from --kind, --analysis or --agent.
func applyKindFlags(args *Args, p *ArgParser) {
	switch {
	case p.Flag("kind") != "":
		args.Kind = p.Flag("kind")
	case p.BoolFlag("analysis") || p.BoolFlag("a"):
		args.Kind = "analysis"
	case p.BoolFlag("agent"):
		args.Kind = "agent"
	}
}

// parseQueryArgs parses ask, chat and tui arguments: kind flags, attached
// files and the free-text query.
func parseQueryArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining, kindBoolFlags...)
	applyKindFlags(args, p)

	files := p.Flag("file")
	if files == "" {
		files = p.Flag("f")
	}
	for _, f := range strings.Split(files, ",") {
		if f = strings.TrimSpace(f); f != "" {
			args.Files = append(args.Files, f)
		}
	}

	args.Query = JoinPositionalArgs(p, 0)
}

// parseHistoryArgs parses history (and export) arguments.
func parseHistoryArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining, kindBoolFlags...)
	applyKindFlags(args, p)

	args.Subcommand = strings.ToLower(p.Subcommand())
	args.Target = p.Positional(1)
	if args.Target == "" && p.Flag("session") != "" {
		args.Target = p.Flag("session")
	}
	args.Format = p.Flag("format")
	args.Output = p.Flag("output")
	if args.Output == "" {
		args.Output = p.Flag("o")
	}
	args.Confirm = p.BoolFlag("confirm") || p.BoolFlag("y")
	args.All = p.BoolFlag("all")
	args.Limit = p.FlagIntOrDefault("limit", 0)
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = strings.ToLower(remaining[0])
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = strings.Join(remaining[2:], " ")
		}
	}
}

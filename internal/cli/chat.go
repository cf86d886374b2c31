// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line chat for chatbi.
//
// Handles "chatbi chat", a REPL over one session. Each line is submitted to
// the current transcript; progress notes print as they arrive and the answer
// prints when the turn settles.
//
// Commands:
//
//	/help, /h           Show help
//	/mode [KIND]        Show or switch transcript (agent, analysis)
//	/reset              Clear the current transcript
//	/history            Show the current transcript
//	/session            Show the session id and saved titles
//	/quit, /q           Exit chat
//
// Ctrl+C cancels the query in flight, Ctrl+D exits.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/chatbi/internal/config"
	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/session"
	"github.com/jeranaias/chatbi/internal/transcript"
	"github.com/jeranaias/chatbi/internal/util"
)

// =============================================================================
// INPUT WITH HISTORY
// =============================================================================

// lineReader reads one line of input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	// Get history file path in config directory
	configDir, err := config.ConfigDir()
	if err != nil {
		// Fallback to temp directory if config dir unavailable
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
// Supports history navigation with arrow keys.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history to file with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT STATE
// =============================================================================

// chatREPL is the state of one chat run.
type chatREPL struct {
	app  *App
	sess *session.Session
	in   lineReader
	out  io.Writer
	err  io.Writer
	kind model.Kind

	// inflight is the kind with a query in progress, "" when idle.
	mu       sync.Mutex
	inflight model.Kind

	queries int
	started time.Time
}

// RunChat handles "chatbi chat".
func (a *App) RunChat(ctx context.Context) error {
	if !IsTTY() {
		return RequiresTTY("chat")
	}
	kind, err := a.Kind()
	if err != nil {
		return err
	}
	sess, err := a.OpenSession()
	if err != nil {
		return NewCommandError("chat", "open session", "could not open session", err)
	}
	defer sess.Close()

	input := NewChatCLI()
	defer input.Close()

	repl := &chatREPL{app: a, sess: sess, in: input, out: a.Out, err: a.Err, kind: kind, started: time.Now()}

	// First Ctrl+C cancels the query in flight. At the prompt liner
	// reports it as ErrPromptAborted instead.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			repl.cancelInflight()
		}
	}()

	return repl.loop(ctx)
}

func (r *chatREPL) loop(ctx context.Context) error {
	if !r.app.Args.Quiet {
		r.printWelcome()
	}

	for {
		line, err := r.in.ReadInput(r.prompt())
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed input all end the chat
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				r.app.Logger.Warn(logModule, "chat input failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			fmt.Fprintln(r.out)
			r.printExitSummary()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			keepGoing, cmdErr := r.handleSlashCommand(line)
			if cmdErr != nil {
				FprintError(r.err, cmdErr)
			}
			if !keepGoing {
				r.printExitSummary()
				return nil
			}
			continue
		}

		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			r.printExitSummary()
			return nil
		}

		if err := r.processQuery(ctx, line); err != nil {
			FprintError(r.err, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *chatREPL) prompt() string {
	return HighlightStyle.Render(r.kind.String() + "> ")
}

// cancelInflight fails the query in progress, if any.
func (r *chatREPL) cancelInflight() {
	r.mu.Lock()
	kind := r.inflight
	r.mu.Unlock()
	if kind != "" && r.sess.Cancel(kind) {
		fmt.Fprintln(r.err, "\n"+WarningStyle.Render("[Cancelled]"))
	}
}

// processQuery submits one line and blocks until its turn settles.
func (r *chatREPL) processQuery(ctx context.Context, query string) error {
	progress := &progressPrinter{w: r.err}
	unsubscribe := r.sess.Subscribe(r.kind, progress.observe)
	defer unsubscribe()

	turn, err := r.sess.Submit(ctx, r.kind, query, nil)
	if err != nil {
		if errors.Is(err, transcript.ErrInvalidState) {
			return fmt.Errorf("a %s query is still in progress", r.kind)
		}
		return err
	}
	r.queries++

	r.mu.Lock()
	r.inflight = r.kind
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inflight = ""
		r.mu.Unlock()
	}()

	final, err := r.sess.Await(ctx, r.kind, turn.RequestID)
	if err != nil {
		if errors.Is(err, session.ErrTurnGone) {
			return nil
		}
		return err
	}
	if final.Status == model.StatusFailed {
		return errors.New(final.DisplayText())
	}
	r.app.displayAnswer(r.out, final)
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func (r *chatREPL) handleSlashCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()
		return true, nil

	case "/mode", "/m":
		if len(args) == 0 {
			fmt.Fprintf(r.out, "%s %s\n", LabelStyle.Render("Mode:"), r.kind.DisplayName())
			return true, nil
		}
		kind, err := model.ParseKind(args[0])
		if err != nil {
			return true, err
		}
		r.kind = kind
		fmt.Fprintf(r.out, "%s %s\n", InfoStyle.Render("[Mode]"), kind.DisplayName())
		return true, nil

	case "/reset", "/clear", "/c":
		if err := r.sess.Reset(r.kind); err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, InfoStyle.Render("["+r.kind.DisplayName()+" transcript cleared]"))
		return true, nil

	case "/history":
		r.printHistory()
		return true, nil

	case "/session", "/s":
		fmt.Fprintf(r.out, "%s %s\n", LabelStyle.Render("Session:"), r.sess.ID())
		for _, kind := range model.Kinds {
			title := r.sess.Title(kind)
			if title == "" {
				title = DimStyle.Render("(empty)")
			}
			fmt.Fprintf(r.out, "%s %s\n", LabelStyle.Render(kind.DisplayName()+":"), title)
		}
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

func (r *chatREPL) printWelcome() {
	fmt.Fprintln(r.out, TitleStyle.Render("chatbi chat"))
	fmt.Fprintf(r.out, "%s %s\n", LabelStyle.Render("Backend:"), r.app.Client.BaseURL())
	fmt.Fprintf(r.out, "%s %s\n", LabelStyle.Render("Model:"), r.sess.Model())
	fmt.Fprintf(r.out, "%s %s\n", LabelStyle.Render("Mode:"), r.kind.DisplayName())
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(r.out)
}

// printHelp prints available commands.
func (r *chatREPL) printHelp() {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, SectionStyle.Render("Available Commands"))
	fmt.Fprintln(r.out, RenderSeparator(20))

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/mode [kind]", "Show or switch transcript (agent, analysis)"},
		{"/reset", "Clear the current transcript"},
		{"/history", "Show the current transcript"},
		{"/session", "Show session id and titles"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n",
			HighlightStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			InfoStyle.Render(c.desc))
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, DimStyle.Render("Tip: Ctrl+C cancels the current query, Ctrl+D exits"))
	fmt.Fprintln(r.out)
}

// printHistory prints the current transcript.
func (r *chatREPL) printHistory() {
	turns := r.sess.Projection(r.kind).Turns
	if len(turns) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No queries yet."))
		return
	}
	for i, t := range turns {
		fmt.Fprintf(r.out, "%s %s\n",
			HighlightStyle.Render(fmt.Sprintf("%d.", i+1)),
			util.OneLine(t.Query))
		fmt.Fprintf(r.out, "   %s %s\n",
			RenderStatus(t.Status.String()),
			DimStyle.Render(util.TruncateWidth(util.OneLine(t.DisplayText()), 70)))
	}
}

func (r *chatREPL) printExitSummary() {
	if r.app.Args.Quiet {
		return
	}
	elapsed := time.Since(r.started).Round(time.Second)
	fmt.Fprintf(r.out, "%s %d queries in %s (session %s)\n",
		DimStyle.Render("Bye."), r.queries, elapsed, r.sess.ID())
}

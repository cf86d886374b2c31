// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler for chatbi.
//
// Handles "chatbi ask", which submits one query, reports progress notes on
// stderr while the answer streams, and prints the reconciled answer.
//
// Examples:
//
//	chatbi ask "Which region grew fastest last quarter?"
//	chatbi ask --analysis "Monthly revenue by product line"
//	chatbi ask --json --kind analysis "Top ten customers"
//	echo "Total orders this week" | chatbi ask
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/session"
	"github.com/jeranaias/chatbi/internal/transcript"
)

// MaxStdinQuery caps a query read from a pipe (64KB).
const MaxStdinQuery = 64 * 1024

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// newMarkdownRenderer builds a glamour renderer wrapped at width. Zero means
// the terminal width.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	if width <= 0 {
		width = GetTerminalWidth()
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		// Fallback to plain text if renderer initialization fails
		return nil
	}
	return r
}

// renderMarkdown renders content for terminal display, returning it unchanged
// when rendering is unavailable.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayAnswer writes the turn's answer to w. Markdown is only rendered when
// stdout is a TTY so piped output stays raw. Failed turns print nothing here;
// the returned TurnFailedError is displayed by main.
func (a *App) displayAnswer(w io.Writer, turn model.Turn) {
	if turn.Status == model.StatusFailed {
		return
	}
	text := turn.DisplayText()
	if a.Out == os.Stdout && IsStdoutTTY() {
		fmt.Fprint(w, renderMarkdown(newMarkdownRenderer(a.Config.UI.WordWrap), text))
	} else {
		fmt.Fprintln(w, text)
	}

	if turn.HasPayload() {
		payload, err := json.MarshalIndent(turn.StructuredPayload, "", "  ")
		if err == nil {
			fmt.Fprintln(w, SectionStyle.Render("Chart data"))
			fmt.Fprintln(w, string(payload))
		}
	}
}

// =============================================================================
// PROGRESS
// =============================================================================

// progressPrinter writes each new progress note of the in-flight turn to w.
// Restored turns are always terminal, so the last non-terminal turn is the
// one just submitted.
type progressPrinter struct {
	w io.Writer

	mu       sync.Mutex
	lastNote string
}

func (p *progressPrinter) observe(proj transcript.Projection) {
	turn, ok := proj.Last()
	if !ok || turn.IsTerminal() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if turn.ProgressNote == "" || turn.ProgressNote == p.lastNote {
		return
	}
	p.lastNote = turn.ProgressNote
	fmt.Fprintf(p.w, "%s %s\n", InfoStyle.Render("[...]"), turn.ProgressNote)
}

// =============================================================================
// ASK COMMAND
// =============================================================================

// RunAsk handles "chatbi ask".
func (a *App) RunAsk(ctx context.Context) error {
	kind, err := a.Kind()
	if err != nil {
		return err
	}

	query := a.Args.Query
	if strings.TrimSpace(query) == "" && a.In != nil {
		data, readErr := io.ReadAll(io.LimitReader(a.In, MaxStdinQuery))
		if readErr != nil {
			return fmt.Errorf("failed to read query from stdin: %w", readErr)
		}
		query = string(data)
	}
	if strings.TrimSpace(query) == "" {
		return ErrMissingArgument("query", `chatbi ask "Which region grew fastest last quarter?"`)
	}

	sess, err := a.OpenSession()
	if err != nil {
		return NewCommandError("ask", "open session", "could not open session", err)
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	start := time.Now()
	if !a.Args.Quiet && !a.Args.JSON {
		progress := &progressPrinter{w: a.Err}
		unsubscribe := sess.Subscribe(kind, progress.observe)
		defer unsubscribe()
	}

	turn, err := sess.Submit(ctx, kind, query, a.Args.Files)
	if err != nil {
		return a.submitError(err)
	}
	return a.finishAsk(ctx, sess, kind, turn, start)
}

func (a *App) submitError(err error) error {
	if errors.Is(err, session.ErrEmptyQuery) {
		return ErrMissingArgument("query", `chatbi ask "Which region grew fastest last quarter?"`)
	}
	if errors.Is(err, transcript.ErrInvalidState) {
		return NewCommandError("ask", "submit", "a query is already in progress for this transcript", err)
	}
	return NewCommandError("ask", "submit", "could not submit query", err)
}

// finishAsk waits for the turn to settle and prints it.
func (a *App) finishAsk(ctx context.Context, sess *session.Session, kind model.Kind, turn model.Turn, start time.Time) error {
	final, err := sess.Await(ctx, kind, turn.RequestID)
	if err != nil {
		if ctx.Err() != nil {
			sess.Cancel(kind)
			return NewCommandError("ask", "await", "interrupted before the answer finished", err)
		}
		return NewCommandError("ask", "await", "no answer", err)
	}

	a.Logger.Info(logModule, "ask finished", map[string]interface{}{
		"session_id":  sess.ID(),
		"request_id":  final.RequestID,
		"status":      final.Status.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	var turnErr error
	if final.Status == model.StatusFailed {
		turnErr = &TurnFailedError{RequestID: final.RequestID, Message: final.DisplayText()}
	}

	if a.Args.JSON {
		resp := NewJSONResponse(CmdAsk.String(), AskData{
			SessionID:  sess.ID(),
			RequestID:  final.RequestID,
			Kind:       kind.String(),
			Model:      final.Model,
			Query:      final.Query,
			Status:     final.Status.String(),
			Content:    final.Content,
			Payload:    final.StructuredPayload,
			Error:      final.ErrorMessage,
			DurationMs: time.Since(start).Milliseconds(),
		})
		if turnErr != nil {
			msg := turnErr.Error()
			resp.Success = false
			resp.Error = &msg
		}
		if err := resp.Write(a.Out); err != nil {
			return err
		}
		return turnErr
	}

	a.displayAnswer(a.Out, final)
	return turnErr
}

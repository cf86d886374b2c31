// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Saved transcript management for chatbi.
//
// Handles "chatbi history" and its "chatbi export" alias.
//
// Examples:
//
//	chatbi history
//	chatbi history show 3f2a
//	chatbi history export --kind analysis --format json -o sales.json
//	chatbi history clear --all --confirm
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/chatbi/internal/export"
	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/storage"
	"github.com/jeranaias/chatbi/internal/util"
)

// RunHistory handles "chatbi history" and "chatbi export".
func (a *App) RunHistory() error {
	switch a.Args.Subcommand {
	case "", "list", "ls":
		return a.historyList()
	case "show", "view":
		return a.historyShow()
	case "export":
		return a.historyExport()
	case "clear", "delete", "rm":
		return a.historyClear()
	default:
		return &ValidationError{
			Field:   "subcommand",
			Value:   a.Args.Subcommand,
			Reason:  "unknown history subcommand",
			Example: "chatbi history [list|show|export|clear]",
		}
	}
}

// =============================================================================
// SESSION RESOLUTION
// =============================================================================

// resolveSession maps a full id or unique id prefix to a saved session id.
// An empty target means the current session.
func (a *App) resolveSession(target string) (string, error) {
	if target == "" {
		if a.Args.SessionID != "" {
			return a.Args.SessionID, nil
		}
		id, ok := a.Bridge.CurrentSession()
		if !ok {
			return "", ErrNotFound("session", "current")
		}
		return id, nil
	}

	metas, err := a.Bridge.Sessions()
	if err != nil {
		return "", err
	}
	var matches []string
	seen := make(map[string]bool)
	for _, m := range metas {
		if m.SessionID == target {
			return target, nil
		}
		if strings.HasPrefix(m.SessionID, target) && !seen[m.SessionID] {
			seen[m.SessionID] = true
			matches = append(matches, m.SessionID)
		}
	}
	switch len(matches) {
	case 0:
		return "", ErrNotFound("session", target)
	case 1:
		return matches[0], nil
	default:
		return "", &ValidationError{
			Field:  "session",
			Value:  target,
			Reason: fmt.Sprintf("prefix matches %d sessions", len(matches)),
		}
	}
}

// selectedKinds returns the kind named by --kind/--analysis/--agent, or every
// kind when none was given.
func (a *App) selectedKinds() ([]model.Kind, error) {
	if a.Args.Kind == "" {
		return model.Kinds, nil
	}
	kind, err := a.Kind()
	if err != nil {
		return nil, err
	}
	return []model.Kind{kind}, nil
}

// loadRecords loads the selected kinds of one session, skipping empty ones.
func (a *App) loadRecords(sessionID string) ([]*storage.Record, error) {
	kinds, err := a.selectedKinds()
	if err != nil {
		return nil, err
	}
	var recs []*storage.Record
	for _, kind := range kinds {
		if rec, ok := a.Bridge.Load(sessionID, kind); ok {
			recs = append(recs, rec)
		}
	}
	if len(recs) == 0 {
		return nil, ErrNotFound("transcript", sessionID)
	}
	return recs, nil
}

// =============================================================================
// LIST
// =============================================================================

func (a *App) historyList() error {
	metas, err := a.Bridge.Sessions()
	if err != nil {
		return NewCommandError("history", "list", "could not read saved transcripts", err)
	}
	if a.Args.Kind != "" {
		kind, err := a.Kind()
		if err != nil {
			return err
		}
		filtered := metas[:0]
		for _, m := range metas {
			if m.Kind == kind {
				filtered = append(filtered, m)
			}
		}
		metas = filtered
	}
	if a.Args.Limit > 0 && len(metas) > a.Args.Limit {
		metas = metas[:a.Args.Limit]
	}
	current, _ := a.Bridge.CurrentSession()

	if a.Args.JSON {
		data := make([]SessionData, 0, len(metas))
		for _, m := range metas {
			entry := SessionData{
				SessionID: m.SessionID,
				Kind:      m.Kind.String(),
				Title:     m.Title,
				Turns:     m.TurnCount,
				Current:   m.SessionID == current,
			}
			if !m.UpdatedAt.IsZero() {
				entry.UpdatedAt = m.UpdatedAt.UTC().Format(time.RFC3339)
			}
			data = append(data, entry)
		}
		_, err := a.respond(CmdHistory, data)
		return err
	}

	fmt.Fprint(a.Out, storage.FormatSessionList(metas))
	if current != "" && len(metas) > 0 {
		fmt.Fprintf(a.Out, "\n%s %s\n", DimStyle.Render("Current session:"), current)
	}
	return nil
}

// =============================================================================
// SHOW
// =============================================================================

func (a *App) historyShow() error {
	id, err := a.resolveSession(a.Args.Target)
	if err != nil {
		return err
	}
	recs, err := a.loadRecords(id)
	if err != nil {
		return err
	}

	if a.Args.JSON {
		_, err := a.respond(CmdHistory, recs)
		return err
	}

	width := GetTerminalWidth()
	for i, rec := range recs {
		if i > 0 {
			fmt.Fprintln(a.Out)
		}
		title := rec.Title
		if title == "" {
			title = rec.Kind.DisplayName() + " transcript"
		}
		fmt.Fprintln(a.Out, TitleStyle.Render(util.OneLine(title)))
		fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("Session:"), rec.SessionID)
		fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("Kind:"), rec.Kind.DisplayName())
		fmt.Fprintf(a.Out, "%s %d\n", RenderLabel("Turns:"), len(rec.Turns))

		for n, turn := range rec.Turns {
			fmt.Fprintln(a.Out, RenderSeparator(minInt(width, 70)))
			fmt.Fprintf(a.Out, "%s %s\n",
				HighlightStyle.Render(fmt.Sprintf("[%d]", n+1)),
				WrapText(turn.Query, width))
			fmt.Fprintf(a.Out, "%s %s\n", RenderStatus(turn.Status.String()), WrapText(turn.DisplayText(), width))
			if turn.HasPayload() {
				fmt.Fprintln(a.Out, DimStyle.Render("(chart data attached; export as json to view)"))
			}
		}
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// =============================================================================
// EXPORT
// =============================================================================

func (a *App) historyExport() error {
	id, err := a.resolveSession(a.Args.Target)
	if err != nil {
		return err
	}

	// Export writes one transcript, so default to the configured kind.
	if a.Args.Kind == "" {
		a.Args.Kind = a.Config.DefaultKind().String()
	}
	recs, err := a.loadRecords(id)
	if err != nil {
		return err
	}
	rec := recs[0]

	opts := export.DefaultOptions()
	exporter, err := export.ForFormat(a.Args.Format, opts)
	if err != nil {
		return ErrUnsupportedFormat(a.Args.Format, []string{"md", "json"})
	}

	out := a.Args.Output
	if out == "" || out == "-" {
		content, err := exporter.Export(rec)
		if err != nil {
			return NewCommandError("history", "export", "could not render transcript", err)
		}
		_, err = a.Out.Write(content)
		return err
	}

	var path string
	if info, statErr := os.Stat(out); statErr == nil && info.IsDir() {
		opts.OutputDir = out
		path, err = export.ExportToFile(rec, exporter, opts)
	} else {
		var content []byte
		content, err = exporter.Export(rec)
		if err == nil {
			path = out
			err = export.WriteFile(path, content)
		}
	}
	if err != nil {
		return NewCommandError("history", "export", "could not write "+out, err)
	}

	a.Logger.Info(logModule, "transcript exported", map[string]interface{}{
		"session_id": id,
		"kind":       rec.Kind.String(),
		"path":       path,
		"mime":       exporter.MimeType(),
	})
	fmt.Fprintf(a.Err, "%s Exported %s transcript to %s\n", RenderStatus("ok"), rec.Kind, path)
	return nil
}

// =============================================================================
// CLEAR
// =============================================================================

func (a *App) historyClear() error {
	if a.Args.All {
		if !a.Args.Confirm {
			return &ValidationError{
				Field:   "confirm",
				Reason:  "clearing every saved transcript requires confirmation",
				Example: "chatbi history clear --all --confirm",
			}
		}
		removed, err := a.Bridge.Clear()
		if err != nil {
			return NewCommandError("history", "clear", "could not remove every transcript", err)
		}
		fmt.Fprintf(a.Out, "%s Removed %d saved transcripts\n", RenderStatus("ok"), removed)
		return nil
	}

	id, err := a.resolveSession(a.Args.Target)
	if err != nil {
		return err
	}
	recs, err := a.loadRecords(id)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		a.Bridge.Delete(id, rec.Kind)
		fmt.Fprintf(a.Out, "%s Removed %s transcript of session %s\n", RenderStatus("ok"), rec.Kind, id)
	}
	return nil
}

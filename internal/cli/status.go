// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status and models commands for chatbi.
//
// Command: status (alias s)
//
// Shows backend health, the selected model and where transcripts are kept.
//
// Command: models
//
// Lists the models the backend can query and marks the configured one.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/chatbi/internal/util"
)

// RunStatus handles "chatbi status".
func (a *App) RunStatus(ctx context.Context) error {
	data := StatusData{
		BaseURL:    a.Client.BaseURL(),
		Model:      a.Config.Server.Model,
		Storage:    a.storageLocation(),
		ConfigPath: a.ConfigPath,
	}
	if id, ok := a.Bridge.CurrentSession(); ok {
		data.Session = id
	}

	start := time.Now()
	health, err := a.Client.Health(ctx)
	data.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		data.Error = err.Error()
	} else {
		data.Status = health.Status
		data.Service = health.Service
		data.Healthy = health.OK()
	}

	a.Logger.Debug(logModule, "health checked", map[string]interface{}{
		"base_url":   data.BaseURL,
		"healthy":    data.Healthy,
		"latency_ms": data.LatencyMs,
	})

	if handled, writeErr := a.respond(CmdStatus, data); handled {
		if writeErr != nil {
			return writeErr
		}
		return err
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("chatbi status"))
	fmt.Fprintln(a.Out, SectionStyle.Render("Backend"))
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("URL:"), ValueStyle.Render(data.BaseURL))
	switch {
	case err != nil:
		fmt.Fprintf(a.Out, "%s %s %s\n", RenderLabel("Health:"), RenderStatus("failed"), DimStyle.Render(data.Error))
	case data.Healthy:
		fmt.Fprintf(a.Out, "%s %s %s\n", RenderLabel("Health:"), RenderStatus("ok"),
			DimStyle.Render(strconv.FormatInt(data.LatencyMs, 10)+"ms"))
	default:
		fmt.Fprintf(a.Out, "%s %s %s\n", RenderLabel("Health:"), RenderStatus("failed"),
			DimStyle.Render("status "+strconv.Quote(data.Status)))
	}
	if data.Service != "" {
		fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("Service:"), ValueStyle.Render(data.Service))
	}
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("Model:"), ValueStyle.Render(data.Model))

	fmt.Fprintln(a.Out, SectionStyle.Render("Local"))
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("Transcripts:"), ValueStyle.Render(data.Storage))
	session := data.Session
	if session == "" {
		session = DimStyle.Render("(none)")
	}
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("Current session:"), session)
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("Config:"), ValueStyle.Render(data.ConfigPath))

	return err
}

// storageLocation describes the configured transcript store.
func (a *App) storageLocation() string {
	if a.Config.Storage.Backend == "sqlite" {
		return "sqlite " + a.Config.Storage.SQLitePath
	}
	return "file " + a.Config.Storage.Dir
}

// RunModels handles "chatbi models".
func (a *App) RunModels(ctx context.Context) error {
	models, err := a.Client.Models(ctx)
	if err != nil {
		return NewCommandError("models", "list", "could not reach "+a.Client.BaseURL(), err)
	}

	data := make([]ModelData, 0, len(models))
	for _, m := range models {
		data = append(data, ModelData{
			Name:    m.ModelName,
			Code:    m.ModelCode,
			Schemas: len(m.SchemaList),
			Current: m.ModelCode == a.Config.Server.Model || m.ModelName == a.Config.Server.Model,
		})
	}
	if handled, err := a.respond(CmdModels, data); handled {
		return err
	}

	if len(data) == 0 {
		fmt.Fprintln(a.Out, DimStyle.Render("The backend reported no models."))
		return nil
	}
	fmt.Fprintf(a.Out, "  %s %s %s\n", formatCell("CODE", 18), formatCell("NAME", 24), "SCHEMAS")
	for _, m := range data {
		marker := "  "
		if m.Current {
			marker = HighlightStyle.Render("* ")
		}
		fmt.Fprintf(a.Out, "%s%s %s %d\n", marker, formatCell(m.Code, 18), formatCell(m.Name, 24), m.Schemas)
	}
	return nil
}

// formatCell pads s to width display cells, truncating when longer.
func formatCell(s string, width int) string {
	s = util.TruncateWidth(s, width)
	if w := util.StringWidth(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

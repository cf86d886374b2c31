// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/session"
	"github.com/jeranaias/chatbi/internal/storage"
	"github.com/jeranaias/chatbi/internal/stream"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// frame encodes an event the way the backend sends it.
func frame(t *testing.T, ev model.Event) string {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return string(data)
}

// backend serves frames on the query endpoint plus health and model listings.
func backend(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(stream.DefaultQueryPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", f)
			if flusher != nil {
				flusher.Flush()
			}
		}
	})
	mux.HandleFunc(stream.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","service":"chatbi-backend"}`)
	})
	mux.HandleFunc(stream.ModelsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"modelName":"Qwen Plus","modelCode":"qwen-plus","schemaList":["sales","crm"]},`+
			`{"modelName":"Qwen Max","modelCode":"qwen-max","schemaList":[]}]`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type testApp struct {
	*App
	out *bytes.Buffer
	err *bytes.Buffer
}

// newTestApp builds an App whose config, storage and logs live under home.
// An empty baseURL keeps the configured default.
func newTestApp(t *testing.T, home, baseURL string, argv ...string) *testApp {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("CHATBI_API_BASE_URL", baseURL)

	cmd, args := ParseArgs(argv)
	app, err := NewApp(cmd, args)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	ta := &testApp{App: app, out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	app.In = nil
	app.Out = ta.out
	app.Err = ta.err
	return ta
}

func (ta *testApp) run(t *testing.T, argv ...string) error {
	t.Helper()
	cmd, _ := ParseArgs(argv)
	return ta.Run(context.Background(), cmd)
}

// askOnce runs one ask against a backend answering with answer and returns
// the session id it was saved under.
func askOnce(t *testing.T, home, query, answer string) string {
	t.Helper()
	server := backend(t,
		frame(t, model.StartEvent("Querying the warehouse")),
		frame(t, model.ResponseEvent(answer, true)),
	)
	argv := []string{"ask", query}
	app := newTestApp(t, home, server.URL, argv...)
	require.NoError(t, app.run(t, argv...))

	id, ok := app.Bridge.CurrentSession()
	require.True(t, ok)
	return id
}

// =============================================================================
// ASK
// =============================================================================

func TestRunAsk_PrintsAnswerAndPersists(t *testing.T) {
	home := t.TempDir()
	server := backend(t,
		frame(t, model.StartEvent("Querying the warehouse")),
		frame(t, model.ResponseEvent("Revenue grew 12%", false)),
		frame(t, model.ResponseEvent("Revenue grew 12% quarter over quarter", true)),
	)
	argv := []string{"ask", "How", "did", "revenue", "do?"}
	app := newTestApp(t, home, server.URL, argv...)

	require.NoError(t, app.run(t, argv...))

	assert.Equal(t, "Revenue grew 12% quarter over quarter\n", app.out.String())
	assert.Contains(t, app.err.String(), "Querying the warehouse")

	id, ok := app.Bridge.CurrentSession()
	require.True(t, ok)
	rec, ok := app.Bridge.Load(id, model.KindAgent)
	require.True(t, ok)
	require.Len(t, rec.Turns, 1)
	assert.Equal(t, "How did revenue do?", rec.Turns[0].Query)
	assert.Equal(t, model.StatusComplete, rec.Turns[0].Status)
	assert.Equal(t, "How did revenue do?", rec.Title)
}

func TestRunAsk_JSONWithAnalysisPayload(t *testing.T) {
	home := t.TempDir()
	answer := "Monthly totals:\n```json\n{\"series\":[1,2]}\n```"
	server := backend(t, frame(t, model.ResponseEvent(answer, true)))
	argv := []string{"--json", "ask", "--analysis", "monthly", "totals"}
	app := newTestApp(t, home, server.URL, argv...)

	require.NoError(t, app.run(t, argv...))

	var resp struct {
		Success bool    `json:"success"`
		Command string  `json:"command"`
		Data    AskData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ask", resp.Command)
	assert.Equal(t, "analysis", resp.Data.Kind)
	assert.Equal(t, "monthly totals", resp.Data.Query)
	assert.Equal(t, "complete", resp.Data.Status)
	require.NotNil(t, resp.Data.Payload)
	assert.Equal(t, []interface{}{1.0, 2.0}, resp.Data.Payload["series"])

	// Progress notes stay off stderr in JSON mode
	assert.Empty(t, app.err.String())
}

func TestRunAsk_ErrorFrameFailsTurn(t *testing.T) {
	home := t.TempDir()
	server := backend(t,
		frame(t, model.StartEvent("")),
		frame(t, model.ErrorEvent("database offline")),
	)
	argv := []string{"ask", "orders", "today"}
	app := newTestApp(t, home, server.URL, argv...)

	err := app.run(t, argv...)
	require.Error(t, err)

	var failed *TurnFailedError
	require.True(t, errors.As(err, &failed))
	assert.Contains(t, failed.Message, "database offline")
	assert.Equal(t, ExitTurnFailed, GetExitCode(err))
	assert.Empty(t, app.out.String())
}

func TestRunAsk_JSONReportsFailure(t *testing.T) {
	home := t.TempDir()
	server := backend(t, frame(t, model.ErrorEvent("database offline")))
	argv := []string{"--json", "ask", "orders"}
	app := newTestApp(t, home, server.URL, argv...)

	err := app.run(t, argv...)
	require.Error(t, err)

	var resp struct {
		Success bool    `json:"success"`
		Error   string  `json:"error"`
		Data    AskData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "failed", resp.Data.Status)
	assert.Contains(t, resp.Error, "database offline")
}

func TestRunAsk_StreamClosedEarly(t *testing.T) {
	home := t.TempDir()
	server := backend(t, frame(t, model.ResponseEvent("partial", false)))
	argv := []string{"ask", "orders"}
	app := newTestApp(t, home, server.URL, argv...)

	err := app.run(t, argv...)

	var failed *TurnFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, session.ClosedEarlyMessage, failed.Message)
}

func TestRunAsk_ReadsQueryFromStdin(t *testing.T) {
	home := t.TempDir()
	server := backend(t, frame(t, model.ResponseEvent("42 orders", true)))
	argv := []string{"ask"}
	app := newTestApp(t, home, server.URL, argv...)
	app.In = strings.NewReader("weekly orders\n")

	require.NoError(t, app.run(t, argv...))

	id, ok := app.Bridge.CurrentSession()
	require.True(t, ok)
	rec, ok := app.Bridge.Load(id, model.KindAgent)
	require.True(t, ok)
	assert.Equal(t, "weekly orders", rec.Turns[0].Query)
}

func TestRunAsk_MissingQuery(t *testing.T) {
	home := t.TempDir()
	argv := []string{"ask"}
	app := newTestApp(t, home, "", argv...)

	err := app.run(t, argv...)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunAsk_InvalidKind(t *testing.T) {
	home := t.TempDir()
	argv := []string{"ask", "--kind", "sql", "orders"}
	app := newTestApp(t, home, "", argv...)

	err := app.run(t, argv...)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunAsk_ResumesCurrentSession(t *testing.T) {
	home := t.TempDir()
	first := askOnce(t, home, "first question", "first answer")
	second := askOnce(t, home, "second question", "second answer")
	assert.Equal(t, first, second)

	server := backend(t, frame(t, model.ResponseEvent("fresh", true)))
	argv := []string{"--new-session", "ask", "third"}
	app := newTestApp(t, home, server.URL, argv...)
	require.NoError(t, app.run(t, argv...))

	third, ok := app.Bridge.CurrentSession()
	require.True(t, ok)
	assert.NotEqual(t, first, third)

	rec, ok := app.Bridge.Load(first, model.KindAgent)
	require.True(t, ok)
	require.Len(t, rec.Turns, 2)
	assert.Equal(t, "second answer", rec.Turns[1].Content)
	assert.Equal(t, "first question", rec.Title)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestRunHistory_ListAndShow(t *testing.T) {
	home := t.TempDir()
	id := askOnce(t, home, "Top customers", "Acme leads")

	argv := []string{"history"}
	app := newTestApp(t, home, "", argv...)
	require.NoError(t, app.run(t, argv...))
	assert.Contains(t, app.out.String(), id[:12])
	assert.Contains(t, app.out.String(), "Top customers")
	assert.Contains(t, app.out.String(), "Current session:")

	argv = []string{"--json", "history", "list"}
	app = newTestApp(t, home, "", argv...)
	require.NoError(t, app.run(t, argv...))
	var resp struct {
		Data []SessionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, id, resp.Data[0].SessionID)
	assert.Equal(t, "agent", resp.Data[0].Kind)
	assert.Equal(t, 1, resp.Data[0].Turns)
	assert.True(t, resp.Data[0].Current)

	argv = []string{"history", "show", id[:8]}
	app = newTestApp(t, home, "", argv...)
	require.NoError(t, app.run(t, argv...))
	assert.Contains(t, app.out.String(), "Top customers")
	assert.Contains(t, app.out.String(), "Acme leads")
	assert.Contains(t, app.out.String(), "[OK]")
}

func TestRunHistory_ShowUnknownSession(t *testing.T) {
	home := t.TempDir()
	askOnce(t, home, "Top customers", "Acme leads")

	argv := []string{"history", "show", "zzz"}
	app := newTestApp(t, home, "", argv...)
	err := app.run(t, argv...)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestRunHistory_ListEmpty(t *testing.T) {
	argv := []string{"history"}
	app := newTestApp(t, t.TempDir(), "", argv...)
	require.NoError(t, app.run(t, argv...))
	assert.Equal(t, "No saved transcripts.", strings.TrimSpace(app.out.String()))
}

func TestRunExport_MarkdownToStdout(t *testing.T) {
	home := t.TempDir()
	askOnce(t, home, "Top customers", "Acme leads")

	argv := []string{"export"}
	app := newTestApp(t, home, "", argv...)
	require.NoError(t, app.run(t, argv...))

	out := app.out.String()
	assert.True(t, strings.HasPrefix(out, "# Top customers"), out)
	assert.Contains(t, out, "### [User]")
	assert.Contains(t, out, "Acme leads")
}

func TestRunExport_JSONToFile(t *testing.T) {
	home := t.TempDir()
	id := askOnce(t, home, "Top customers", "Acme leads")
	path := filepath.Join(t.TempDir(), "customers.json")

	argv := []string{"history", "export", id, "--format", "json", "-o", path}
	app := newTestApp(t, home, "", argv...)
	require.NoError(t, app.run(t, argv...))
	assert.Contains(t, app.err.String(), "Exported")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rec, err := storage.DecodeRecord(model.KindAgent, data)
	require.NoError(t, err)
	assert.Equal(t, id, rec.SessionID)
	require.Len(t, rec.Turns, 1)
	assert.Equal(t, "Acme leads", rec.Turns[0].Content)
}

func TestRunExport_UnsupportedFormat(t *testing.T) {
	home := t.TempDir()
	askOnce(t, home, "Top customers", "Acme leads")

	argv := []string{"export", "--format", "pdf"}
	app := newTestApp(t, home, "", argv...)
	err := app.run(t, argv...)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunHistory_Clear(t *testing.T) {
	home := t.TempDir()
	askOnce(t, home, "Top customers", "Acme leads")

	argv := []string{"history", "clear", "--all"}
	app := newTestApp(t, home, "", argv...)
	err := app.run(t, argv...)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	metas, err := app.Bridge.Sessions()
	require.NoError(t, err)
	assert.Len(t, metas, 1)

	argv = []string{"history", "clear", "--all", "--confirm"}
	app = newTestApp(t, home, "", argv...)
	require.NoError(t, app.run(t, argv...))

	metas, err = app.Bridge.Sessions()
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestRunHistory_ClearCurrentKind(t *testing.T) {
	home := t.TempDir()
	id := askOnce(t, home, "Top customers", "Acme leads")

	argv := []string{"history", "clear", "--kind", "agent"}
	app := newTestApp(t, home, "", argv...)
	require.NoError(t, app.run(t, argv...))
	assert.Contains(t, app.out.String(), id)

	_, ok := app.Bridge.Load(id, model.KindAgent)
	assert.False(t, ok)
}

// =============================================================================
// STATUS AND MODELS
// =============================================================================

func TestRunStatus_Healthy(t *testing.T) {
	server := backend(t)
	argv := []string{"status"}
	app := newTestApp(t, t.TempDir(), server.URL, argv...)

	require.NoError(t, app.run(t, argv...))
	assert.Contains(t, app.out.String(), "[OK]")
	assert.Contains(t, app.out.String(), "chatbi-backend")
	assert.Contains(t, app.out.String(), server.URL)
}

func TestRunStatus_JSON(t *testing.T) {
	server := backend(t)
	argv := []string{"--json", "status"}
	app := newTestApp(t, t.TempDir(), server.URL, argv...)

	require.NoError(t, app.run(t, argv...))
	var resp struct {
		Success bool       `json:"success"`
		Data    StatusData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &resp))
	assert.True(t, resp.Data.Healthy)
	assert.Equal(t, "ok", resp.Data.Status)
	assert.Equal(t, stream.DefaultModel, resp.Data.Model)
}

func TestRunStatus_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	argv := []string{"status"}
	app := newTestApp(t, t.TempDir(), url, argv...)

	err := app.run(t, argv...)
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
	assert.Contains(t, app.out.String(), "[FAIL]")
}

func TestRunModels(t *testing.T) {
	server := backend(t)
	argv := []string{"--model", "qwen-max", "models"}
	app := newTestApp(t, t.TempDir(), server.URL, argv...)

	require.NoError(t, app.run(t, argv...))
	out := app.out.String()
	assert.Contains(t, out, "qwen-plus")
	assert.Contains(t, out, "Qwen Max")

	argv = []string{"--json", "--model", "qwen-max", "models"}
	app = newTestApp(t, t.TempDir(), server.URL, argv...)
	require.NoError(t, app.run(t, argv...))
	var resp struct {
		Data []ModelData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.False(t, resp.Data[0].Current)
	assert.True(t, resp.Data[1].Current)
	assert.Equal(t, 2, resp.Data[0].Schemas)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestRunConfig_SetGetPath(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "chatbi.toml")

	argv := []string{"--config", path, "config", "set", "server.model", "qwen-max"}
	app := newTestApp(t, home, "", argv...)
	require.NoError(t, app.run(t, argv...))
	assert.Contains(t, app.out.String(), "server.model = qwen-max")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "qwen-max")

	argv = []string{"--config", path, "config", "get", "server.model"}
	app = newTestApp(t, home, "", argv...)
	require.NoError(t, app.run(t, argv...))
	assert.Equal(t, "qwen-max\n", app.out.String())

	argv = []string{"--config", path, "config", "path"}
	app = newTestApp(t, home, "", argv...)
	require.NoError(t, app.run(t, argv...))
	assert.Contains(t, app.out.String(), path)
}

func TestRunConfig_SetDoesNotPersistEnvOverrides(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "chatbi.toml")

	argv := []string{"--config", path, "config", "set", "log.level", "debug"}
	app := newTestApp(t, home, "http://override.example:9000", argv...)
	require.NoError(t, app.run(t, argv...))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "override.example")
}

func TestRunConfig_Errors(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "chatbi.toml")

	argv := []string{"--config", path, "config", "set", "server.nope", "1"}
	app := newTestApp(t, home, "", argv...)
	err := app.run(t, argv...)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))

	argv = []string{"--config", path, "config", "set", "server.timeout_secs", "9999"}
	app = newTestApp(t, home, "", argv...)
	err = app.run(t, argv...)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	argv = []string{"--config", path, "config", "get", "server.nope"}
	app = newTestApp(t, home, "", argv...)
	err = app.run(t, argv...)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

// =============================================================================
// VERSION
// =============================================================================

func TestWriteVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVersion(&buf, true))

	var resp struct {
		Success bool        `json:"success"`
		Data    VersionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, Version, resp.Data.Version)

	buf.Reset()
	require.NoError(t, WriteVersion(&buf, false))
	assert.Contains(t, buf.String(), "chatbi version "+Version)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/storage"
)

func sampleRecord() *storage.Record {
	done := model.NewTurn(model.KindAnalysis, "r1", "revenue by region", []string{"sales.csv"})
	done.Status = model.StatusComplete
	done.Content = "East leads.\n```json\n{\"series\":[1]}\n```"
	done.StructuredPayload = map[string]any{"series": []any{float64(1)}}
	done.Model = "qwen-plus"

	failed := model.NewTurn(model.KindAnalysis, "r2", "and margins?", nil)
	failed.Status = model.StatusFailed
	failed.ErrorMessage = "Error Occurred While Processing Request"

	return &storage.Record{
		SessionID: "s1",
		Kind:      model.KindAnalysis,
		Title:     "revenue by region",
		Turns:     []model.Turn{done, failed},
	}
}

func TestMarkdownExporter_Export(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleRecord())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: revenue by region\n"))
	assert.Contains(t, md, "kind: analysis")
	assert.Contains(t, md, "turns: 2")
	assert.Contains(t, md, "# revenue by region")
	assert.Contains(t, md, "### [User]")
	assert.Contains(t, md, "### [Data analysis]")
	assert.Contains(t, md, "<sub>Files: sales.csv</sub>")
	assert.Contains(t, md, "East leads.")
	assert.Contains(t, md, "<summary>Chart data</summary>")
	assert.Contains(t, md, "> **[FAIL]** Error Occurred While Processing Request")
	assert.Contains(t, md, "Model: qwen-plus")
}

func TestMarkdownExporter_NoMetadata(t *testing.T) {
	opts := &Options{IncludeMetadata: false, IncludeTimestamps: false}
	out, err := NewMarkdownExporter(opts).Export(sampleRecord())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "# revenue by region"))
	assert.NotContains(t, md, "Status:")
	assert.NotContains(t, md, "### [User] <sub>")
}

func TestMarkdownExporter_Errors(t *testing.T) {
	e := NewMarkdownExporter(nil)
	_, err := e.Export(nil)
	assert.Error(t, err)
	_, err = e.Export(&storage.Record{Kind: model.KindAgent})
	assert.Error(t, err)
}

// TestYAMLNewlineInjection tests that newlines in titles cannot add frontmatter keys.
func TestYAMLNewlineInjection(t *testing.T) {
	rec := sampleRecord()
	rec.Title = "Test\nInjection: malicious"

	out, err := NewMarkdownExporter(nil).Export(rec)
	require.NoError(t, err)
	assert.Contains(t, string(out), `title: "Test\nInjection: malicious"`)
	assert.NotContains(t, string(out), "\nInjection: malicious\n")
}

func TestMarkdownExporter_UntitledAndPending(t *testing.T) {
	pending := model.NewTurn(model.KindAgent, "r1", "q", nil)
	pending.Status = model.StatusStreaming
	pending.ProgressNote = "Querying"

	out, err := NewMarkdownExporter(nil).Export(&storage.Record{Kind: model.KindAgent, Turns: []model.Turn{pending}})
	require.NoError(t, err)
	assert.Contains(t, string(out), "# Agent transcript")
	assert.Contains(t, string(out), "*Querying*")
}

func TestJSONExporter_PersistedShape(t *testing.T) {
	rec := sampleRecord()
	out, err := NewJSONExporter(nil).Export(rec)
	require.NoError(t, err)

	decoded, err := storage.DecodeRecord(model.KindAnalysis, out)
	require.NoError(t, err)
	assert.Equal(t, "revenue by region", decoded.Title)
	require.Len(t, decoded.Turns, 2)
	assert.Equal(t, model.StatusFailed, decoded.Turns[1].Status)
	assert.Contains(t, string(out), `"dataChatList"`)

	_, err = NewJSONExporter(nil).Export(nil)
	assert.Error(t, err)
}

func TestForFormat(t *testing.T) {
	for _, f := range []string{"", "md", "Markdown"} {
		e, err := ForFormat(f, nil)
		require.NoError(t, err)
		assert.Equal(t, ".md", e.FileExtension())
	}
	e, err := ForFormat("json", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", e.MimeType())

	_, err = ForFormat("html", nil)
	assert.Error(t, err)
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = filepath.Join(dir, "out")

	path, err := ExportToFile(sampleRecord(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)

	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "chatbi_analysis_revenue_by_region_"), base)
	assert.True(t, strings.HasSuffix(base, ".md"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "East leads.")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "transcript"},
		{"a/b:c", "a-b-c"},
		{"two words", "two_words"},
		{"tab\there", "tab_here"},
		{"bell\x07", "bell-"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
	assert.LessOrEqual(t, len([]rune(sanitizeFilename(strings.Repeat("x", 200)))), 50)
}

func TestFormatTimestamps(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "2025-03-04 05:06:07", formatTimestamp(ts))
	assert.Equal(t, "05:06:07", formatShortTimestamp(ts))
}

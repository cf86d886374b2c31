// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/storage"
	"github.com/jeranaias/chatbi/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a record to Markdown.
func (e *MarkdownExporter) Export(rec *storage.Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("record is nil")
	}
	if len(rec.Turns) == 0 {
		return nil, fmt.Errorf("transcript has no turns")
	}

	title := rec.Title
	if title == "" {
		title = rec.Kind.DisplayName() + " transcript"
	}

	var sb strings.Builder

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(title)))
		sb.WriteString(fmt.Sprintf("session: %s\n", rec.SessionID))
		sb.WriteString(fmt.Sprintf("kind: %s\n", rec.Kind))
		sb.WriteString(fmt.Sprintf("updated: %s\n", rec.UpdatedAt().Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("turns: %d\n", len(rec.Turns)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("generator: chatbi\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(util.OneLine(title))))

	for i, turn := range rec.Turns {
		e.writeTurn(&sb, turn)
		if i < len(rec.Turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeTurn(sb *strings.Builder, turn model.Turn) {
	if e.options.IncludeTimestamps && !turn.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("### [User] <sub>%s</sub>\n\n", formatShortTimestamp(turn.CreatedAt)))
	} else {
		sb.WriteString("### [User]\n\n")
	}
	sb.WriteString(strings.TrimSpace(turn.Query))
	sb.WriteString("\n\n")
	if len(turn.Files) > 0 {
		sb.WriteString(fmt.Sprintf("<sub>Files: %s</sub>\n\n", strings.Join(turn.Files, ", ")))
	}

	label := fmt.Sprintf("[%s]", turn.Kind.DisplayName())
	if e.options.IncludeTimestamps && !turn.UpdatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(turn.UpdatedAt)))
	} else {
		sb.WriteString(fmt.Sprintf("### %s\n\n", label))
	}

	switch turn.Status {
	case model.StatusFailed:
		if turn.Content != "" {
			sb.WriteString(strings.TrimSpace(turn.Content))
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("> **[FAIL]** %s\n\n", turn.DisplayText()))
	case model.StatusComplete:
		sb.WriteString(strings.TrimSpace(turn.Content))
		sb.WriteString("\n\n")
	default:
		sb.WriteString(fmt.Sprintf("*%s*\n\n", turn.DisplayText()))
	}

	if turn.HasPayload() {
		if data, err := json.MarshalIndent(turn.StructuredPayload, "", "  "); err == nil {
			sb.WriteString("<details><summary>Chart data</summary>\n\n```json\n")
			sb.Write(data)
			sb.WriteString("\n```\n\n</details>\n\n")
		}
	}

	if e.options.IncludeMetadata {
		parts := []string{"Status: " + turn.Status.String()}
		if turn.Model != "" {
			parts = append(parts, "Model: "+turn.Model)
		}
		if !turn.CreatedAt.IsZero() {
			parts = append(parts, "Asked: "+formatTimestamp(turn.CreatedAt))
		}
		sb.WriteString(fmt.Sprintf("<sub>%s</sub>\n\n", strings.Join(parts, " | ")))
	}
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML escapes special YAML characters in values.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}

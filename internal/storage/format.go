// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strconv"
	"strings"

	"github.com/jeranaias/chatbi/internal/util"
)

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList formats persisted transcripts as a table.
func FormatSessionList(sessions []SessionMeta) string {
	if len(sessions) == 0 {
		return "No saved transcripts."
	}

	var sb strings.Builder
	sb.WriteString(formatPadded("SESSION", 12) + " " +
		formatPadded("KIND", 9) + " " +
		formatPadded("UPDATED", 16) + " " +
		formatPadded("TURNS", 5) + " TITLE\n")

	for _, s := range sessions {
		idStr := s.SessionID
		if len(idStr) > 12 {
			idStr = idStr[:12]
		}
		updated := "-"
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}

		sb.WriteString(formatPadded(idStr, 12) + " " +
			formatPadded(string(s.Kind), 9) + " " +
			formatPadded(updated, 16) + " " +
			formatPadded(strconv.Itoa(s.TurnCount), 5) + " " +
			util.TruncateWidth(util.OneLine(title), 40) + "\n")
	}
	return sb.String()
}

// formatPadded pads s with spaces to the given display width.
func formatPadded(s string, width int) string {
	if w := util.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

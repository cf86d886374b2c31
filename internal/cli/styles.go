// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - lipgloss styles for command output.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// STYLES
// =============================================================================

var (
	// TitleStyle heads a command's output.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	// SectionStyle heads a transcript or a block of fields.
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			MarginTop(1)

	// LabelStyle pads field labels to a common width.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(18)

	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	// HighlightStyle marks user queries in transcripts and the REPL.
	HighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	// InfoStyle marks progress notes.
	InfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))

	DimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)

	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// RenderSeparator renders a rule of width w, 70 when w is not positive.
func RenderSeparator(w int) string {
	if w <= 0 {
		w = 70
	}
	return separatorStyle.Render(strings.Repeat("=", w))
}

// RenderStatus renders a turn or health status marker.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "complete", "healthy":
		return okStyle.Render("[OK]")
	case "error", "fail", "failed":
		return ErrorStyle.Render("[FAIL]")
	case "pending", "streaming":
		return WarningStyle.Render("[...]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// RenderLabel renders a field label at the common width.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/chatbi/internal/model"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderMeta  lipgloss.Style

	// Mode badges, active and inactive
	AgentBadge    lipgloss.Style
	AnalysisBadge lipgloss.Style
	InactiveBadge lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT STYLES
	// ==========================================================================

	UserQuery lipgloss.Style
	Answer    lipgloss.Style
	Progress  lipgloss.Style
	Failed    lipgloss.Style
	Payload   lipgloss.Style
	Separator lipgloss.Style
	Welcome   lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS BAR STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	StatusError    lipgloss.Style
	StatusInfo     lipgloss.Style
	HelpKey        lipgloss.Style
	HelpDesc       lipgloss.Style
	Spinner        lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextSecondary)

	badge := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	t.AgentBadge = badge.Copy().
		Foreground(TextInverse).
		Background(Cyan)

	t.AnalysisBadge = badge.Copy().
		Foreground(TextInverse).
		Background(Purple)

	t.InactiveBadge = badge.Copy().
		Bold(false).
		Foreground(TextMuted)

	// Transcript
	t.UserQuery = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.Answer = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.Progress = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.Failed = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.Payload = lipgloss.NewStyle().
		Foreground(Emerald)

	t.Separator = lipgloss.NewStyle().
		Foreground(Overlay)

	t.Welcome = lipgloss.NewStyle().
		Foreground(TextMuted).
		Padding(1, 2)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose)

	t.StatusInfo = lipgloss.NewStyle().
		Foreground(Emerald)

	t.HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)

	t.HelpDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Amber)
}

// ModeBadge renders the badge for a transcript kind.
func (t *Theme) ModeBadge(kind model.Kind, active bool) string {
	if !active {
		return t.InactiveBadge.Render(kind.DisplayName())
	}
	if kind == model.KindAnalysis {
		return t.AnalysisBadge.Render(kind.DisplayName())
	}
	return t.AgentBadge.Render(kind.DisplayName())
}

// StatusMarker renders the accessible marker for a turn status.
func (t *Theme) StatusMarker(status model.Status) string {
	switch status {
	case model.StatusComplete:
		return t.StatusInfo.Render(StatusIndicators.Success)
	case model.StatusFailed:
		return t.Failed.Render(StatusIndicators.Error)
	default:
		return t.Progress.Render(StatusIndicators.Pending)
	}
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// PALETTE
// =============================================================================

// Mode colors. Cyan marks the agent transcript and user queries, purple the
// analysis transcript.
var (
	Cyan       = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	CyanDeep   = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#164E63"}
	Purple     = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	PurpleDeep = lipgloss.AdaptiveColor{Light: "#5B21B6", Dark: "#4C1D95"}
)

// Turn status colors.
var (
	Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"} // complete
	Amber   = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"} // pending, streaming
	Rose    = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"} // failed
)

// Surfaces and text.
var (
	SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
	Overlay    = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
	TextInverse   = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1E1E2E"}
)

// =============================================================================
// STATUS MARKERS
// =============================================================================

// StatusIndicatorSet holds the text markers shown next to a turn, so status
// does not depend on color alone.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Pending string
}

// StatusIndicators are ASCII-only so they render on any terminal.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Pending: "[...]",
}

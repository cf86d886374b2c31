// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the chatbi TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

## Accent Colors

  - Cyan - Brand color, user queries, the agent transcript
  - Purple - Answers and the analysis transcript
  - Emerald - Completed turns
  - Amber - Progress notes and warnings
  - Rose - Failed turns and errors

## Text Colors

	TextPrimary   - Main content text
	TextSecondary - Supporting text
	TextMuted     - De-emphasized text
	TextInverse   - Text on colored backgrounds

# Theme System (theme.go)

The Theme struct groups the styles the chat view renders with:

	theme := styles.NewTheme()
	badge := theme.ModeBadge(model.KindAnalysis, true)

StatusIndicators pair every status color with an ASCII marker so status is
readable without color.
*/
package styles

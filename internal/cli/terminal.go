// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - TTY, width and color detection.
//
// Answers are rendered as markdown only on a terminal; piped output stays
// plain.

package cli

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/jeranaias/chatbi/internal/util"
)

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Wrap widths for answers and transcripts.
const (
	DefaultTerminalWidth = 80
	MinTerminalWidth     = 40
)

// GetTerminalWidth returns the width of stdout, DefaultTerminalWidth when it
// is not a terminal and never less than MinTerminalWidth.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	switch {
	case err != nil || width <= 0:
		return DefaultTerminalWidth
	case width < MinTerminalWidth:
		return MinTerminalWidth
	}
	return width
}

// WrapText wraps text at maxWidth display cells, or at the terminal width
// when maxWidth is not positive. Newlines are kept. Words wider than the
// line, such as unspaced CJK text, are broken between characters.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = GetTerminalWidth()
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		if util.StringWidth(line) <= maxWidth {
			result.WriteString(line)
			continue
		}

		current := ""
		flush := func() {
			result.WriteString(current)
			result.WriteString("\n")
			current = ""
		}
		for _, word := range strings.Fields(line) {
			for util.StringWidth(word) > maxWidth {
				head := runewidth.Truncate(word, maxWidth, "")
				if head == "" {
					break
				}
				if current != "" {
					flush()
				}
				current = head
				flush()
				word = word[len(head):]
			}
			switch {
			case word == "":
			case current == "":
				current = word
			case util.StringWidth(current)+1+util.StringWidth(word) <= maxWidth:
				current += " " + word
			default:
				flush()
				current = word
			}
		}
		result.WriteString(current)
	}

	return strings.TrimRight(result.String(), "\n")
}

var colorProfile = sync.OnceValue(func() termenv.Profile {
	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	if os.Getenv("FORCE_COLOR") == "" && !IsStdoutTTY() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
})

// GetColorProfile returns the color profile for command output: Ascii when
// NO_COLOR is set or stdout is piped, unless FORCE_COLOR is set.
func GetColorProfile() termenv.Profile {
	return colorProfile()
}

// TTYRequiredError is returned by commands that need an interactive stdin.
type TTYRequiredError struct {
	Operation string
}

func (e *TTYRequiredError) Error() string {
	return "stdin is not a terminal; cannot run " + e.Operation + " interactively"
}

// RequiresTTY returns a TTYRequiredError when stdin is not a terminal.
func RequiresTTY(operation string) error {
	if IsTTY() {
		return nil
	}
	return &TTYRequiredError{Operation: operation}
}

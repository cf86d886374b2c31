// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const ellipsis = "..."

// TruncateRunes cuts s to at most n runes, ending in "..." when it was cut
// and n leaves room for it.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	switch {
	case len(r) <= n:
		return s
	case n <= len(ellipsis):
		return string(r[:n])
	}
	return string(r[:n-len(ellipsis)]) + ellipsis
}

// TruncateWidth cuts s to at most w terminal columns. Wide (CJK) characters
// count as two.
func TruncateWidth(s string, w int) string {
	switch {
	case w <= 0:
		return ""
	case runewidth.StringWidth(s) <= w:
		return s
	case w <= len(ellipsis):
		return runewidth.Truncate(s, w, "")
	}
	return runewidth.Truncate(s, w, ellipsis)
}

// StringWidth returns the number of terminal columns s occupies.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// OneLine collapses all whitespace, newlines included, into single spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

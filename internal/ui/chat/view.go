// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/transcript"
	"github.com/jeranaias/chatbi/internal/util"
)

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	widthChanged := width != m.width
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	m.viewport.Width = width
	m.viewport.Height = height - chromeHeight
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.input.Width = width - 6
	if m.input.Width < 10 {
		m.input.Width = 10
	}

	if widthChanged || m.renderer == nil {
		m.rebuildRenderer()
	}
	m.ready = true
	m.refresh(false)
}

// contentWidth is the width answers are wrapped at.
func (m *Model) contentWidth() int {
	w := m.width - 2
	if m.wordWrap > 0 && m.wordWrap < w {
		w = m.wordWrap
	}
	if w < 20 {
		w = 20
	}
	return w
}

// rebuildRenderer recreates the markdown renderer for the current width and
// drops answers rendered at the old one.
func (m *Model) rebuildRenderer() {
	m.rendered = make(map[string]string)
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(m.glamourStyle),
		glamour.WithWordWrap(m.contentWidth()),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
}

// refresh re-renders the current transcript into the viewport. The view
// follows new output when asked to, or when it was already at the bottom.
func (m *Model) refresh(follow bool) {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript(m.projections[m.mode]))
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

func (m *Model) renderTranscript(p transcript.Projection) string {
	if len(p.Turns) == 0 {
		return m.renderWelcome()
	}

	width := m.contentWidth()
	sep := m.theme.Separator.Render(strings.Repeat("─", minInt(width, 60)))

	var sb strings.Builder
	for i, turn := range p.Turns {
		if i > 0 {
			sb.WriteString(sep)
			sb.WriteString("\n")
		}
		sb.WriteString(m.theme.UserQuery.Width(width).Render("> " + turn.Query))
		sb.WriteString("\n")
		sb.WriteString(m.renderAnswer(turn, width))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m *Model) renderAnswer(turn model.Turn, width int) string {
	switch {
	case turn.Status == model.StatusFailed:
		return m.theme.StatusMarker(turn.Status) + " " +
			m.theme.Failed.Width(width-4).Render(turn.DisplayText())

	case turn.Content == "":
		note := turn.ProgressNote
		if note == "" {
			note = "Waiting for the backend"
		}
		return m.theme.StatusMarker(turn.Status) + " " + m.theme.Progress.Render(note)
	}

	out := m.renderMarkdown(turn)
	if turn.HasPayload() {
		out += "\n" + m.theme.Payload.Render("Chart data: "+payloadSummary(turn.StructuredPayload))
	}
	if !turn.IsTerminal() {
		out += "\n" + m.theme.StatusMarker(turn.Status)
	}
	return out
}

// renderMarkdown renders an answer with glamour. Settled answers are cached.
func (m *Model) renderMarkdown(turn model.Turn) string {
	if turn.IsTerminal() {
		if cached, ok := m.rendered[turn.RequestID]; ok {
			return cached
		}
	}

	out := turn.Content
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(turn.Content); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	if m.renderer != nil && turn.IsTerminal() {
		m.rendered[turn.RequestID] = out
	}
	return out
}

func (m *Model) renderWelcome() string {
	var lines []string
	switch m.mode {
	case model.KindAnalysis:
		lines = []string{
			"Data analysis mode.",
			"Ask for a breakdown, a trend or a chart, e.g. \"Monthly revenue by region\".",
			"Chart specifications in the answer are picked up automatically.",
		}
	default:
		lines = []string{
			"Agent mode.",
			"Ask a question about your data, e.g. \"Which products sold best last week?\".",
		}
	}
	lines = append(lines, "", "Tab switches mode, Ctrl+R clears the transcript.")
	return m.theme.Welcome.Render(strings.Join(lines, "\n"))
}

// payloadSummary lists the top-level keys of a structured payload.
func payloadSummary(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat view.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.theme.InputContainer.Width(m.width-2).Render(m.input.View()),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	parts := []string{m.theme.HeaderBrand.Render("chatbi")}
	for _, kind := range model.Kinds {
		parts = append(parts, m.theme.ModeBadge(kind, kind == m.mode))
	}

	meta := m.backend.Model()
	if id := m.backend.ID(); id != "" {
		meta += "  " + shortID(id)
	}
	if m.baseURL != "" && m.width >= 100 {
		meta += "  " + m.baseURL
	}
	parts = append(parts, m.theme.HeaderMeta.Render(meta))

	return m.theme.Header.Width(m.width).Render(strings.Join(parts, " "))
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.lastError != "":
		left = m.theme.StatusError.Render(m.lastError)
	case m.Busy(m.mode):
		note := "Submitting"
		if last, ok := m.projections[m.mode].Last(); ok && !last.IsTerminal() {
			note = "Answering"
			if last.ProgressNote != "" {
				note = util.OneLine(last.ProgressNote)
			}
		}
		left = m.spinner.View() + " " + note
	case m.statusMsg != "":
		left = m.theme.StatusInfo.Render(m.statusMsg)
	}

	bindings := m.keys.ShortHelp()
	if m.Busy(m.mode) {
		bindings = m.keys.BusyHelp()
	}
	help := renderHelp(m, bindings)

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(help)
	if gap < 1 {
		return m.theme.StatusBar.MaxWidth(maxInt(m.width, 10)).Render(left)
	}
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + help)
}

func renderHelp(m Model, bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, m.theme.HelpKey.Render(h.Key)+" "+m.theme.HelpDesc.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/session"
	"github.com/jeranaias/chatbi/internal/transcript"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// Session calls notify store observers synchronously, so they always run as
// commands outside Update.

func (m Model) submitCmd(kind model.Kind, query string) tea.Cmd {
	backend, ctx := m.backend, m.ctx
	return func() tea.Msg {
		turn, err := backend.Submit(ctx, kind, query, nil)
		return SubmittedMsg{Kind: kind, Turn: turn, Error: err}
	}
}

func (m Model) resetCmd(kind model.Kind) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		return ResetMsg{Kind: kind, Error: backend.Reset(kind)}
	}
}

func (m Model) cancelCmd(kind model.Kind) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		return CancelledMsg{Kind: kind, Cancelled: backend.Cancel(kind)}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ProjectionMsg:
		if m.accept(msg.Projection) && msg.Projection.Kind == m.mode {
			m.refresh(true)
		}
		return m, nil

	case SubmittedMsg:
		delete(m.submitting, msg.Kind)
		if msg.Error != nil {
			m.lastError = submitErrorText(msg.Kind, msg.Error)
		}
		m.pull(msg.Kind)
		return m, nil

	case ResetMsg:
		if msg.Error != nil {
			m.lastError = "Reset failed: " + msg.Error.Error()
		} else {
			m.statusMsg = msg.Kind.DisplayName() + " transcript cleared"
		}
		m.pull(msg.Kind)
		return m, nil

	case CancelledMsg:
		if msg.Cancelled {
			m.statusMsg = "Query cancelled"
		}
		m.pull(msg.Kind)
		return m, nil

	case ConfigReloadedMsg:
		m.applyConfig(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.ToggleMode):
		if m.AnyBusy() {
			m.lastError = "Wait for the current query before switching mode"
			return m, nil
		}
		m.setMode(otherKind(m.mode))
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		m.clearStatus()
		return m, m.resetCmd(m.mode)

	case key.Matches(msg, m.keys.Cancel):
		if !m.Busy(m.mode) {
			m.clearStatus()
			return m, nil
		}
		return m, m.cancelCmd(m.mode)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line to the current transcript.
func (m Model) submit() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return m, nil
	}
	if m.Busy(m.mode) {
		m.lastError = fmt.Sprintf("A %s query is still in progress", strings.ToLower(m.mode.DisplayName()))
		return m, nil
	}

	m.clearStatus()
	m.input.Reset()
	m.submitting[m.mode] = true
	return m, m.submitCmd(m.mode, query)
}

// =============================================================================
// STATE HELPERS
// =============================================================================

// accept stores p unless the view already holds a newer projection.
func (m *Model) accept(p transcript.Projection) bool {
	if cur, ok := m.projections[p.Kind]; ok && p.Seq < cur.Seq {
		return false
	}
	m.projections[p.Kind] = p
	return true
}

// pull refreshes kind from the backend. The forwarder delivers the same
// projections, but may not have caught up yet.
func (m *Model) pull(kind model.Kind) {
	if m.accept(m.backend.Projection(kind)) && kind == m.mode {
		m.refresh(true)
	}
}

func (m *Model) setMode(kind model.Kind) {
	if kind == m.mode {
		return
	}
	m.mode = kind
	m.clearStatus()
	m.statusMsg = "Switched to " + kind.DisplayName()
	m.refresh(true)
}

func (m *Model) clearStatus() {
	m.statusMsg = ""
	m.lastError = ""
}

func (m *Model) applyConfig(msg ConfigReloadedMsg) {
	if msg.Error != nil {
		m.lastError = "Config reload failed: " + msg.Error.Error()
		return
	}
	if msg.Config == nil {
		return
	}
	m.clearStatus()
	m.statusMsg = "Configuration reloaded"
	if msg.Config.UI.WordWrap != m.wordWrap {
		m.wordWrap = msg.Config.UI.WordWrap
		m.rebuildRenderer()
		m.refresh(false)
	}
}

func otherKind(kind model.Kind) model.Kind {
	if kind == model.KindAnalysis {
		return model.KindAgent
	}
	return model.KindAnalysis
}

func submitErrorText(kind model.Kind, err error) string {
	switch {
	case errors.Is(err, transcript.ErrInvalidState):
		return fmt.Sprintf("A %s query is still in progress", strings.ToLower(kind.DisplayName()))
	case errors.Is(err, session.ErrEmptyQuery):
		return "Type a question first"
	case errors.Is(err, session.ErrClosed):
		return "The session is closed"
	default:
		return "Submit failed: " + err.Error()
	}
}

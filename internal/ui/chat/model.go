// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/transcript"
	"github.com/jeranaias/chatbi/internal/ui/styles"
)

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the part of a session the chat view drives. *session.Session
// implements it.
type Backend interface {
	ID() string
	Model() string
	Projection(kind model.Kind) transcript.Projection
	Submit(ctx context.Context, kind model.Kind, query string, files []string) (model.Turn, error)
	Reset(kind model.Kind) error
	Cancel(kind model.Kind) bool
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Layout rows outside the viewport: header, input box (3) and status bar.
const chromeHeight = 5

// MaxQueryLength caps the input line.
const MaxQueryLength = 4096

// Options configures a chat Model.
type Options struct {
	Theme *styles.Theme

	// Mode is the transcript shown first.
	Mode model.Kind

	// WordWrap caps the answer width; zero wraps at the window width.
	WordWrap int

	// GlamourStyle is a glamour standard style name. Empty picks dark or
	// light from the terminal background.
	GlamourStyle string

	// BaseURL is shown in the header.
	BaseURL string

	// InitialQuery is submitted as soon as the program starts.
	InitialQuery string

	// Context scopes the streams this view opens. Defaults to Background.
	Context context.Context
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	backend Backend
	ctx     context.Context
	theme   *styles.Theme
	keys    KeyMap

	// Dimensions
	width  int
	height int
	ready  bool

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Transcripts
	mode        model.Kind
	projections map[model.Kind]transcript.Projection
	submitting  map[model.Kind]bool

	// Markdown rendering
	renderer     *glamour.TermRenderer
	glamourStyle string
	wordWrap     int
	rendered     map[string]string

	// Status
	baseURL      string
	initialQuery string
	statusMsg    string
	lastError    string
	quitting     bool
}

// New creates a chat model over backend, seeded with its current projections.
func New(backend Backend, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	mode := opts.Mode
	if mode == "" {
		mode = model.KindAgent
	}
	glamourStyle := opts.GlamourStyle
	if glamourStyle == "" {
		glamourStyle = "light"
		if theme.IsDark {
			glamourStyle = "dark"
		}
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.Placeholder = "Ask about your data..."
	ti.CharLimit = MaxQueryLength
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := Model{
		backend:      backend,
		ctx:          ctx,
		theme:        theme,
		keys:         DefaultKeyMap(),
		viewport:     viewport.New(0, 0),
		input:        ti,
		spinner:      sp,
		mode:         mode,
		projections:  make(map[model.Kind]transcript.Projection),
		submitting:   make(map[model.Kind]bool),
		glamourStyle: glamourStyle,
		wordWrap:     opts.WordWrap,
		rendered:     make(map[string]string),
		baseURL:      opts.BaseURL,
	}
	for _, kind := range model.Kinds {
		m.projections[kind] = backend.Projection(kind)
	}
	if q := strings.TrimSpace(opts.InitialQuery); q != "" && !m.Busy(mode) {
		m.initialQuery = q
		m.submitting[mode] = true
	}
	return m
}

// Init starts the cursor blink and the spinner, and submits the initial
// query if there is one.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.initialQuery != "" {
		cmds = append(cmds, m.submitCmd(m.mode, m.initialQuery))
	}
	return tea.Batch(cmds...)
}

// Mode returns the transcript currently shown.
func (m Model) Mode() model.Kind {
	return m.mode
}

// Projection returns the latest projection the view holds for kind.
func (m Model) Projection(kind model.Kind) transcript.Projection {
	return m.projections[kind]
}

// Busy reports whether kind has a query being submitted or in progress.
func (m Model) Busy(kind model.Kind) bool {
	return m.submitting[kind] || m.projections[kind].Busy()
}

// AnyBusy reports whether either transcript is busy.
func (m Model) AnyBusy() bool {
	for _, kind := range model.Kinds {
		if m.Busy(kind) {
			return true
		}
	}
	return false
}

// StatusMessage returns the transient status line, error first.
func (m Model) StatusMessage() string {
	if m.lastError != "" {
		return m.lastError
	}
	return m.statusMsg
}

// Quitting reports whether the user asked to quit.
func (m Model) Quitting() bool {
	return m.quitting
}

// InputValue returns the current input line.
func (m Model) InputValue() string {
	return m.input.Value()
}

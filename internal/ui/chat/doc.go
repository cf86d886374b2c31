// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view of the chatbi TUI.

The view shows one transcript at a time, agent or data analysis, and renders
whatever projection the session's store last published. It never reconciles
stream events itself: the session folds events into turns and the view only
draws the result.

# Key Components

## Model (model.go)

The Model struct is the Bubble Tea model. It holds the latest projection of
each transcript, the input line and the viewport, and talks to the session
through the Backend interface.

## Update Loop (update.go)

  - Enter submits the input to the current transcript
  - Tab switches between agent and data analysis while nothing is in flight
  - Ctrl+R resets the current transcript
  - Esc cancels the query in flight
  - Ctrl+C quits

Session calls run as tea.Cmds, never inside Update, since they notify store
observers synchronously.

## Forwarder (forwarder.go)

Forwarder is the store observer that feeds projections into the program. It
keeps only the newest projection per transcript, so a slow render never
blocks the stream that produced the change.

## View Rendering (view.go)

Header with mode badges, the transcript rendered with glamour, the input box
and a status bar with the current progress note.

# Usage

	m := chat.New(sess, chat.Options{Theme: styles.NewTheme(), Mode: model.KindAgent})
	p := tea.NewProgram(m, tea.WithAltScreen())

	fwd := chat.NewForwarder(p.Send)
	go fwd.Run()
	defer fwd.Close()
	for _, kind := range model.Kinds {
		defer sess.Subscribe(kind, fwd.Observe)()
	}

	_, err := p.Run()
*/
package chat

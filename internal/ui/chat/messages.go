// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/chatbi/internal/config"
	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/transcript"
)

// =============================================================================
// TRANSCRIPT MESSAGES
// =============================================================================

// ProjectionMsg carries a transcript projection published by the store.
type ProjectionMsg struct {
	Projection transcript.Projection
}

// SubmittedMsg reports the outcome of submitting a query.
type SubmittedMsg struct {
	Kind  model.Kind
	Turn  model.Turn
	Error error
}

// ResetMsg reports the outcome of resetting a transcript.
type ResetMsg struct {
	Kind  model.Kind
	Error error
}

// CancelledMsg reports whether a cancel found a query in flight.
type CancelledMsg struct {
	Kind      model.Kind
	Cancelled bool
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg carries a configuration reloaded from disk, or the error
// that prevented it.
type ConfigReloadedMsg struct {
	Config *config.Config
	Error  error
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the lifecycle position of a Turn. It only moves forward.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further event may change a Turn in this status.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// IsValid reports whether s is one of the four known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusStreaming, StatusComplete, StatusFailed:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// =============================================================================
// KIND
// =============================================================================

// Kind selects which transcript a Turn belongs to.
type Kind string

const (
	// KindAgent is the multi-step agent transcript.
	KindAgent Kind = "agent"
	// KindAnalysis is the data-analysis transcript.
	KindAnalysis Kind = "analysis"
)

// Kinds lists every transcript kind in display order.
var Kinds = []Kind{KindAgent, KindAnalysis}

// ParseKind maps user input to a Kind. "general" and "data" are accepted as
// the names the history records were originally filed under.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "agent", "general", "":
		return KindAgent, nil
	case "analysis", "data":
		return KindAnalysis, nil
	}
	return "", fmt.Errorf("unknown transcript kind %q (want agent or analysis)", s)
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// DisplayName returns a human-readable label for the kind.
func (k Kind) DisplayName() string {
	switch k {
	case KindAnalysis:
		return "Data analysis"
	default:
		return "Agent"
	}
}

// =============================================================================
// TURN
// =============================================================================

// Turn is one user query and its streamed answer within a transcript.
type Turn struct {
	// Identity (immutable)
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId,omitempty"`
	Kind      Kind   `json:"kind"`

	// Query (immutable)
	Query string   `json:"query"`
	Files []string `json:"files,omitempty"`
	Model string   `json:"model,omitempty"`

	// Reconciled state
	Status            Status         `json:"status"`
	ProgressNote      string         `json:"progressNote"`
	Content           string         `json:"content"`
	StructuredPayload map[string]any `json:"structuredPayload,omitempty"`
	ErrorMessage      string         `json:"errorMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTurn creates a pending Turn for a freshly submitted query.
func NewTurn(kind Kind, requestID, query string, files []string) Turn {
	now := time.Now()
	t := Turn{
		RequestID: requestID,
		Kind:      kind,
		Query:     query,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(files) > 0 {
		t.Files = append([]string(nil), files...)
	}
	return t
}

// Clone returns a copy that shares nothing mutable with t.
// StructuredPayload is treated as read-only and copied one level deep.
func (t Turn) Clone() Turn {
	c := t
	if t.Files != nil {
		c.Files = append([]string(nil), t.Files...)
	}
	if t.StructuredPayload != nil {
		c.StructuredPayload = make(map[string]any, len(t.StructuredPayload))
		for k, v := range t.StructuredPayload {
			c.StructuredPayload[k] = v
		}
	}
	return c
}

// IsTerminal reports whether the Turn is complete or failed.
func (t Turn) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// HasPayload reports whether a structured chart/table payload was extracted.
func (t Turn) HasPayload() bool {
	return len(t.StructuredPayload) > 0
}

// DisplayText returns what a renderer should show in the answer slot:
// the error for failed turns, the content once any exists, else the progress note.
func (t Turn) DisplayText() string {
	switch {
	case t.Status == StatusFailed:
		if t.ErrorMessage != "" {
			return t.ErrorMessage
		}
		return "The request failed."
	case t.Content != "":
		return t.Content
	default:
		return t.ProgressNote
	}
}

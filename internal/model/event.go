// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// EventType is the "type" field of a stream frame.
type EventType string

const (
	EventStart    EventType = "start"
	EventResponse EventType = "response"
	EventError    EventType = "error"
)

// IsKnown reports whether the reducers act on this event type.
func (e EventType) IsKnown() bool {
	switch e {
	case EventStart, EventResponse, EventError:
		return true
	}
	return false
}

// Event is one decoded frame of the streaming protocol.
//
// Message carries the progress note for start, the cumulative answer text for
// response and the failure text for error. Finished is only meaningful on
// response; an omitted value decodes as false.
type Event struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	Finished  bool      `json:"finished,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// StartEvent builds a start event.
func StartEvent(note string) Event {
	return Event{Type: EventStart, Message: note}
}

// ResponseEvent builds a response event carrying the full text so far.
func ResponseEvent(text string, finished bool) Event {
	return Event{Type: EventResponse, Message: text, Finished: finished}
}

// ErrorEvent builds an error event.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error variables for common stream failures.
var (
	// ErrFrameTooLarge indicates a frame exceeded the configured size limit.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrInvalidRequest indicates the request payload failed validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnexpectedStatus indicates a non-200 response from the backend.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// DecodeError reports a single frame that could not be decoded.
// It is never terminal.
type DecodeError struct {
	Data []byte // Raw frame data, possibly truncated
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TransportError reports a failure of the underlying connection. It always
// ends the stream.
type TransportError struct {
	StatusCode int    // HTTP status, 0 when no response was received
	Body       string // Leading bytes of an error response body
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("stream transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("stream transport error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerMessage extracts a human-readable message from the error body, if the
// backend supplied one ({"detail": ...} or {"message": ...}).
func (e *TransportError) ServerMessage() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return ""
	}
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ""
	}
	if s, ok := payload.Detail.(string); ok && s != "" {
		return s
	}
	return payload.Message
}

// IsTerminal reports whether err ends the stream it was reported on.
func IsTerminal(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

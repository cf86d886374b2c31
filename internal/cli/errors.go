// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes. Commands return errors; main
// displays them and exits.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/chatbi/internal/config"
	"github.com/jeranaias/chatbi/internal/stream"
)

// Exit codes. Scripts calling ask rely on ExitTurnFailed to tell a failed
// answer from a transport problem.
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	ExitTurnFailed    = 9
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError is a failure of one step of a command, e.g. "history export".
type CommandError struct {
	Command string
	Action  string
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError reports a bad flag or argument.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string // optional usage hint
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError reports an unknown session, transcript or config key.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// TurnFailedError is returned by ask when the turn ends failed.
type TurnFailedError struct {
	RequestID string
	Message   string
}

func (e *TurnFailedError) Error() string {
	return "query failed: " + e.Message
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// ErrMissingArgument reports a required argument, with usage as the hint.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{
		Field:   argName,
		Reason:  "required argument missing",
		Example: usage,
	}
}

func ErrUnsupportedFormat(format string, supported []string) error {
	return &ValidationError{
		Field:   "format",
		Value:   format,
		Reason:  "unsupported format",
		Example: "supported formats: " + strings.Join(supported, ", "),
	}
}

func ErrNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// =============================================================================
// ERROR DISPLAY HELPERS
// =============================================================================

// DisplayError prints err as a JSON envelope on stdout in JSON mode, and as
// an [ERROR] line on stderr otherwise.
func DisplayError(err error, jsonMode bool) {
	if jsonMode {
		DisplayErrorJSON(os.Stdout, err)
		return
	}
	FprintError(os.Stderr, err)
}

// FprintError writes a human-readable error line to w.
func FprintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// DisplayErrorJSON writes err as a JSON object with an error_type and the
// fields of the typed error it wraps.
func DisplayErrorJSON(w io.Writer, err error) {
	if err == nil {
		return
	}
	output := map[string]interface{}{
		"error":   err.Error(),
		"success": false,
	}

	var (
		cmdErr      *CommandError
		validateErr *ValidationError
		notFoundErr *NotFoundError
		turnErr     *TurnFailedError
	)
	switch {
	case errors.As(err, &turnErr):
		output["error_type"] = "turn_failed"
		output["request_id"] = turnErr.RequestID
	case errors.As(err, &validateErr):
		output["error_type"] = "validation_error"
		output["field"] = validateErr.Field
		output["value"] = validateErr.Value
		output["reason"] = validateErr.Reason
		if validateErr.Example != "" {
			output["example"] = validateErr.Example
		}
	case errors.As(err, &notFoundErr):
		output["error_type"] = "not_found_error"
		output["resource"] = notFoundErr.Resource
		output["id"] = notFoundErr.ID
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
		output["reason"] = cmdErr.Reason
		if cmdErr.Err != nil {
			output["underlying_error"] = cmdErr.Err.Error()
		}
	default:
		output["error_type"] = "generic_error"
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

// GetExitCode maps err to the process exit code.
func GetExitCode(err error) int {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		turnErr       *TurnFailedError
		cfgErrs       config.ValidateErrors
		transportErr  *stream.TransportError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &validationErr):
		return ExitUsageError
	case errors.As(err, &notFoundErr):
		return ExitNotFoundError
	case errors.As(err, &turnErr):
		return ExitTurnFailed
	case errors.As(err, &cfgErrs):
		return ExitConfigError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &transportErr):
		return ExitNetworkError
	}
	return ExitGeneralError
}

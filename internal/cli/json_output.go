// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting against chatbi.

package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the envelope every --json command prints on stdout.
// Progress and hints go to stderr so stdout stays one JSON document.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"` // null on success
	Timestamp string      `json:"timestamp"`
	Command   string      `json:"command,omitempty"`
}

// NewJSONResponse wraps data in a successful envelope stamped with the
// current UTC time.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes r, indented, to w.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// VersionData is the data of version --json.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// AskData is the data of ask --json: the settled turn.
type AskData struct {
	SessionID  string         `json:"session_id"`
	RequestID  string         `json:"request_id"`
	Kind       string         `json:"kind"`
	Model      string         `json:"model"`
	Query      string         `json:"query"`
	Status     string         `json:"status"`
	Content    string         `json:"content"`
	Payload    map[string]any `json:"payload,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// StatusData is the data of status --json.
type StatusData struct {
	BaseURL    string `json:"base_url"`
	Healthy    bool   `json:"healthy"`
	Status     string `json:"status,omitempty"`
	Service    string `json:"service,omitempty"`
	Error      string `json:"error,omitempty"`
	Model      string `json:"model"`
	Storage    string `json:"storage"`
	Session    string `json:"current_session,omitempty"`
	ConfigPath string `json:"config_path,omitempty"`
	LatencyMs  int64  `json:"latency_ms"`
}

// ModelData is one entry in the models command output.
type ModelData struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Schemas int    `json:"schemas"`
	Current bool   `json:"current"`
}

// SessionData is one entry in the history list output.
type SessionData struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Turns     int    `json:"turns"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Current   bool   `json:"current"`
}

// ConfigData is the data of config get, set and path.
type ConfigData struct {
	Key   string      `json:"key,omitempty"`
	Value interface{} `json:"value,omitempty"`
	Path  string      `json:"path,omitempty"`
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// =============================================================================
// NON-STREAMING ENDPOINTS
// =============================================================================

// HealthStatus is the backend health response.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// OK reports whether the backend declared itself healthy.
func (h *HealthStatus) OK() bool {
	return h != nil && h.Status == "ok"
}

// ModelInfo describes one model/database the backend can query.
type ModelInfo struct {
	ModelName  string `json:"modelName"`
	ModelCode  string `json:"modelCode"`
	SchemaList []any  `json:"schemaList"`
}

// Health checks the backend health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.getJSON(ctx, HealthPath, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Models lists the models the backend exposes.
func (c *Client) Models(ctx context.Context) ([]ModelInfo, error) {
	var models []ModelInfo
	if err := c.getJSON(ctx, ModelsPath, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// getJSON performs a bounded GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return &TransportError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/jeranaias/chatbi/internal/logging"
	"github.com/jeranaias/chatbi/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultQueryPath is the streaming query endpoint.
	DefaultQueryPath = "/api/chat/query"

	// HealthPath is the backend health endpoint.
	HealthPath = "/api/chat/health"

	// ModelsPath lists the models/databases the backend can answer against.
	ModelsPath = "/api/chat/models"

	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 15 * time.Second

	// DefaultModel is the backend's default model selector.
	DefaultModel = "qwen-plus"

	// MaxResponseSize caps non-streaming response bodies.
	MaxResponseSize = 4 * 1024 * 1024

	// maxErrorBody is how much of an error response is kept.
	maxErrorBody = 4 * 1024

	logModule = "stream"
)

// sharedTransport pools connections for both streaming and plain requests.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// validate is shared; validator caches struct metadata.
var validate = validator.New()

// =============================================================================
// TYPES
// =============================================================================

// Request is the payload POSTed to open a stream.
type Request struct {
	Query     string `json:"query" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	RequestID string `json:"request_id" validate:"required"`
	Model     string `json:"model" validate:"required"`
}

// Validate checks that every field is present.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Sink receives the output of one stream.
type Sink interface {
	// OnEvent is called once per decoded frame, in receipt order.
	OnEvent(ev model.Event)

	// OnStreamError is called with a *DecodeError for each undecodable frame,
	// or once with a *TransportError as the terminal callback.
	OnStreamError(err error)

	// OnStreamClosed is the terminal callback for a stream the server ended.
	OnStreamClosed()
}

// Handle tracks one open stream.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed after the terminal callback has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel aborts the stream. The sink still receives its terminal callback.
func (h *Handle) Cancel() {
	h.cancel()
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	QueryPath string

	// Timeout bounds Health and Models. Streams are bounded by their context.
	Timeout time.Duration

	// MaxFrameBytes bounds a single frame's data.
	MaxFrameBytes int

	// OpensPerSecond limits how often streams may be opened. Zero disables it.
	OpensPerSecond float64
	OpenBurst      int

	Logger     logging.Logger
	HTTPClient *http.Client
}

// Client opens streams against one backend.
type Client struct {
	baseURL       string
	queryPath     string
	timeout       time.Duration
	maxFrameBytes int
	limiter       *rate.Limiter
	logger        logging.Logger
	httpClient    *http.Client
}

// NewClient creates a client for the backend at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", opts.BaseURL)
	}

	c := &Client{
		baseURL:       base,
		queryPath:     opts.QueryPath,
		timeout:       opts.Timeout,
		maxFrameBytes: opts.MaxFrameBytes,
		logger:        logging.OrNop(opts.Logger),
		httpClient:    opts.HTTPClient,
	}
	if c.queryPath == "" {
		c.queryPath = DefaultQueryPath
	}
	if !strings.HasPrefix(c.queryPath, "/") {
		c.queryPath = "/" + c.queryPath
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxFrameBytes <= 0 {
		c.maxFrameBytes = DefaultMaxFrameBytes
	}
	if c.httpClient == nil {
		// No client timeout for streaming, controlled via context
		c.httpClient = &http.Client{Transport: sharedTransport}
	}
	if opts.OpensPerSecond > 0 {
		burst := opts.OpenBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.OpensPerSecond), burst)
	}
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// STREAMING
// =============================================================================

// Open starts one streaming request and returns immediately. See the package
// documentation for the callback contract.
func (c *Client) Open(ctx context.Context, req Request, sink Sink) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	g := &guardedSink{sink: sink}

	go func() {
		defer close(h.done)
		defer cancel()

		err := c.run(ctx, req, g)
		if err != nil {
			c.logger.Warn(logModule, "stream failed", map[string]interface{}{
				"request_id": req.RequestID,
				"error":      err,
			})
			g.fail(err)
			return
		}
		c.logger.Debug(logModule, "stream closed", map[string]interface{}{
			"request_id": req.RequestID,
		})
		g.close()
	}()

	return h
}

// run performs the request and reads frames until the stream ends. Any
// returned error is a *TransportError.
func (c *Client) run(ctx context.Context, req Request, sink *guardedSink) error {
	if err := req.Validate(); err != nil {
		return &TransportError{Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Err: fmt.Errorf("waiting to open stream: %w", err)}
		}
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.queryPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Connection", "keep-alive")

	c.logger.Debug(logModule, "opening stream", map[string]interface{}{
		"request_id": req.RequestID,
		"session_id": req.SessionID,
		"model":      req.Model,
	})

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &TransportError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status),
		}
	}

	return c.processStream(ctx, resp.Body, req.RequestID, sink)
}

// processStream reads and dispatches frames until EOF.
func (c *Client) processStream(ctx context.Context, body io.Reader, requestID string, sink *guardedSink) error {
	reader := NewSSEReader(body, c.maxFrameBytes)

	for {
		select {
		case <-ctx.Done():
			return &TransportError{Err: ctx.Err()}
		default:
		}

		frame, err := reader.ReadFrame()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if errors.Is(err, ErrFrameTooLarge) {
				sink.OnStreamError(&DecodeError{Err: err})
				continue
			}
			if ctx.Err() != nil {
				return &TransportError{Err: ctx.Err()}
			}
			return &TransportError{Err: fmt.Errorf("read failed: %w", err)}
		}

		if len(bytes.TrimSpace(frame.Data)) == 0 {
			continue
		}

		ev, err := DecodeEvent(frame.Data)
		if err != nil {
			sink.OnStreamError(err)
			continue
		}

		if !ev.Type.IsKnown() {
			c.logger.Debug(logModule, "unknown event type", map[string]interface{}{
				"request_id": requestID,
				"type":       string(ev.Type),
			})
		}
		sink.OnEvent(ev)
	}
}

// DecodeEvent decodes one frame's data. Failures are returned as *DecodeError.
func DecodeEvent(data []byte) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.Event{}, &DecodeError{Data: snippet(data), Err: err}
	}
	if ev.Type == "" {
		return model.Event{}, &DecodeError{Data: snippet(data), Err: errors.New("frame has no type")}
	}
	return ev, nil
}

func snippet(data []byte) []byte {
	const limit = 256
	if len(data) > limit {
		data = data[:limit]
	}
	return append([]byte(nil), data...)
}

// guardedSink enforces the exactly-once terminal callback.
type guardedSink struct {
	sink Sink
	once sync.Once
}

func (g *guardedSink) OnEvent(ev model.Event) {
	g.sink.OnEvent(ev)
}

// OnStreamError forwards non-terminal decode errors.
func (g *guardedSink) OnStreamError(err error) {
	g.sink.OnStreamError(err)
}

func (g *guardedSink) fail(err error) {
	g.once.Do(func() { g.sink.OnStreamError(err) })
}

func (g *guardedSink) close() {
	g.once.Do(g.sink.OnStreamClosed)
}

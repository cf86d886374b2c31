// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/chatbi/internal/logging"
	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/reconcile"
	"github.com/jeranaias/chatbi/internal/storage"
	"github.com/jeranaias/chatbi/internal/stream"
	"github.com/jeranaias/chatbi/internal/transcript"
	"github.com/jeranaias/chatbi/internal/util"
)

const logModule = "session"

// TitleWidth is the display width transcript titles are truncated to.
const TitleWidth = 48

const (
	// ClosedEarlyMessage fails a turn whose stream ended without a terminal event.
	ClosedEarlyMessage = "The stream closed before the response finished"

	// CancelledMessage fails a turn the user abandoned.
	CancelledMessage = "The request was cancelled"

	// InterruptedMessage fails a restored turn that was still in progress when
	// the previous process exited.
	InterruptedMessage = "The response was interrupted before it finished"
)

var (
	// ErrEmptyQuery is returned for a query that is blank after trimming.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("session is closed")

	// ErrUnknownKind is returned for a transcript kind the session does not hold.
	ErrUnknownKind = errors.New("unknown transcript kind")

	// ErrTurnGone is returned by Await when the turn was removed by a reset.
	ErrTurnGone = errors.New("turn no longer exists")
)

// =============================================================================
// TRANSPORT
// =============================================================================

// Stream is one open streaming request.
type Stream interface {
	Cancel()
	Done() <-chan struct{}
}

// Opener starts streaming requests.
type Opener interface {
	Open(ctx context.Context, req stream.Request, sink stream.Sink) Stream
}

type clientOpener struct {
	client *stream.Client
}

func (o clientOpener) Open(ctx context.Context, req stream.Request, sink stream.Sink) Stream {
	return o.client.Open(ctx, req, sink)
}

// ClientOpener adapts a stream client to Opener.
func ClientOpener(c *stream.Client) Opener {
	return clientOpener{client: c}
}

// =============================================================================
// SESSION
// =============================================================================

// Options configures New.
type Options struct {
	// SessionID selects the session explicitly.
	SessionID string

	// NewSession ignores the remembered current session and starts a fresh one.
	NewSession bool

	Opener Opener

	// Bridge persists transcripts. Nil keeps them in memory only.
	Bridge *storage.Bridge

	// Model is sent with every request.
	Model string

	// DecodeErrorsFailTurn fails the active turn on an undecodable frame
	// instead of skipping the frame.
	DecodeErrorsFailTurn bool

	Logger logging.Logger
}

// activeStream is the current-turn token for one kind.
type activeStream struct {
	requestID string
	stream    Stream
}

// Session holds the agent and analysis transcripts of one chat session.
type Session struct {
	id                   string
	opener               Opener
	bridge               *storage.Bridge
	model                string
	decodeErrorsFailTurn bool
	logger               logging.Logger

	stores   map[model.Kind]*transcript.Store
	reducers map[model.Kind]reconcile.Reducer
	unsubs   []func()

	// mu serializes every reducer application and the token bookkeeping.
	mu     sync.Mutex
	active map[model.Kind]*activeStream
	closed bool
}

// New creates a session, restoring any persisted transcripts for its id.
func New(opts Options) (*Session, error) {
	if opts.Opener == nil {
		return nil, errors.New("session: opener is required")
	}
	modelName := opts.Model
	if modelName == "" {
		modelName = stream.DefaultModel
	}

	s := &Session{
		opener:               opts.Opener,
		bridge:               opts.Bridge,
		model:                modelName,
		decodeErrorsFailTurn: opts.DecodeErrorsFailTurn,
		logger:               logging.OrNop(opts.Logger),
		stores:               make(map[model.Kind]*transcript.Store),
		reducers:             make(map[model.Kind]reconcile.Reducer),
		active:               make(map[model.Kind]*activeStream),
	}
	s.id = s.resolveID(opts)
	if s.bridge != nil {
		s.bridge.SetCurrentSession(s.id)
	}

	for _, kind := range model.Kinds {
		store := transcript.NewStore(kind)
		s.stores[kind] = store
		s.reducers[kind] = reconcile.ForKind(kind)
		s.restore(kind)

		if s.bridge != nil {
			kind := kind
			s.unsubs = append(s.unsubs, store.Subscribe(func(p transcript.Projection) {
				s.bridge.Save(s.id, kind, TitleFor(p.Turns), p.Turns)
			}))
		}
	}

	s.logger.Info(logModule, "session ready", map[string]interface{}{
		"session_id": s.id,
		"model":      s.model,
	})
	return s, nil
}

func (s *Session) resolveID(opts Options) string {
	if id := strings.TrimSpace(opts.SessionID); id != "" {
		return id
	}
	if !opts.NewSession && s.bridge != nil {
		if id, ok := s.bridge.CurrentSession(); ok {
			return id
		}
	}
	return uuid.NewString()
}

// restore seeds the kind's store from the bridge. Turns left in progress by
// a previous process are failed, since their streams cannot be resumed.
func (s *Session) restore(kind model.Kind) {
	if s.bridge == nil {
		return
	}
	rec, ok := s.bridge.Load(s.id, kind)
	if !ok || len(rec.Turns) == 0 {
		return
	}

	interrupted := 0
	now := time.Now()
	for i := range rec.Turns {
		if !rec.Turns[i].IsTerminal() {
			rec.Turns[i].Status = model.StatusFailed
			rec.Turns[i].ProgressNote = ""
			rec.Turns[i].ErrorMessage = InterruptedMessage
			rec.Turns[i].UpdatedAt = now
			interrupted++
		}
	}
	s.stores[kind].Restore(rec.Turns)

	if interrupted > 0 {
		s.bridge.Save(s.id, kind, TitleFor(rec.Turns), rec.Turns)
	}
	s.logger.Debug(logModule, "transcript restored", map[string]interface{}{
		"session_id":  s.id,
		"kind":        string(kind),
		"turns":       len(rec.Turns),
		"interrupted": interrupted,
	})
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Model returns the model sent with requests.
func (s *Session) Model() string {
	return s.model
}

// Store returns the transcript store for kind.
func (s *Session) Store(kind model.Kind) (*transcript.Store, error) {
	store, ok := s.stores[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return store, nil
}

// Projection returns the current view of a transcript.
func (s *Session) Projection(kind model.Kind) transcript.Projection {
	if store, ok := s.stores[kind]; ok {
		return store.Projection()
	}
	return transcript.Projection{Kind: kind}
}

// Busy reports whether kind has a turn in progress.
func (s *Session) Busy(kind model.Kind) bool {
	store, ok := s.stores[kind]
	return ok && store.Busy()
}

// Subscribe registers fn for every change to the kind's transcript.
func (s *Session) Subscribe(kind model.Kind, fn transcript.Observer) (unsubscribe func()) {
	store, ok := s.stores[kind]
	if !ok {
		return func() {}
	}
	return store.Subscribe(fn)
}

// Title returns the display title of a transcript.
func (s *Session) Title(kind model.Kind) string {
	return TitleFor(s.Projection(kind).Turns)
}

// TitleFor derives a transcript title from its first query.
func TitleFor(turns []model.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	return util.TruncateWidth(util.OneLine(turns[0].Query), TitleWidth)
}

// NormalizeQuery trims and NFC-normalizes a query.
func NormalizeQuery(query string) string {
	return norm.NFC.String(strings.TrimSpace(query))
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit appends a pending turn to the kind's transcript and opens its stream.
// It fails with transcript.ErrInvalidState while the previous turn of that
// kind is still in progress.
func (s *Session) Submit(ctx context.Context, kind model.Kind, query string, files []string) (model.Turn, error) {
	query = NormalizeQuery(query)
	if query == "" {
		return model.Turn{}, ErrEmptyQuery
	}
	store, err := s.Store(kind)
	if err != nil {
		return model.Turn{}, err
	}

	turn := model.NewTurn(kind, uuid.NewString(), query, files)
	turn.SessionID = s.id
	turn.Model = s.model

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Turn{}, ErrClosed
	}
	if err := store.Append(turn); err != nil {
		s.mu.Unlock()
		return model.Turn{}, fmt.Errorf("submit %s query: %w", kind, err)
	}
	token := &activeStream{requestID: turn.RequestID}
	s.active[kind] = token
	s.mu.Unlock()

	s.logger.Info(logModule, "query submitted", map[string]interface{}{
		"session_id": s.id,
		"request_id": turn.RequestID,
		"kind":       string(kind),
	})

	req := stream.Request{
		Query:     query,
		SessionID: s.id,
		RequestID: turn.RequestID,
		Model:     s.model,
	}
	st := s.opener.Open(ctx, req, &turnSink{session: s, kind: kind, requestID: turn.RequestID})

	s.mu.Lock()
	current := s.active[kind] == token
	if current {
		token.stream = st
	}
	s.mu.Unlock()

	// Reset, Cancel or Close ran while the stream was opening.
	if !current {
		st.Cancel()
	}
	return turn, nil
}

// Await blocks until the turn reaches a terminal status and returns it.
func (s *Session) Await(ctx context.Context, kind model.Kind, requestID string) (model.Turn, error) {
	store, err := s.Store(kind)
	if err != nil {
		return model.Turn{}, err
	}

	type result struct {
		turn  model.Turn
		found bool
	}
	results := make(chan result, 1)
	check := func(turns []model.Turn) {
		for _, t := range turns {
			if t.RequestID == requestID {
				if t.IsTerminal() {
					select {
					case results <- result{turn: t, found: true}:
					default:
					}
				}
				return
			}
		}
		select {
		case results <- result{}:
		default:
		}
	}

	unsubscribe := store.Subscribe(func(p transcript.Projection) { check(p.Turns) })
	defer unsubscribe()
	check(store.Projection().Turns)

	select {
	case r := <-results:
		if !r.found {
			return model.Turn{}, fmt.Errorf("%w: %s", ErrTurnGone, requestID)
		}
		return r.turn, nil
	case <-ctx.Done():
		return model.Turn{}, ctx.Err()
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// apply folds ev into the turn when requestID is still the kind's active turn.
func (s *Session) apply(kind model.Kind, requestID string, ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(kind, requestID, ev)
}

func (s *Session) applyLocked(kind model.Kind, requestID string, ev model.Event) {
	token := s.active[kind]
	if token == nil || token.requestID != requestID {
		s.logger.Debug(logModule, "callback for inactive turn ignored", map[string]interface{}{
			"request_id": requestID,
			"event":      string(ev.Type),
		})
		return
	}

	store := s.stores[kind]
	current, ok := store.Get(requestID)
	if !ok {
		delete(s.active, kind)
		return
	}

	next := s.reducers[kind].Apply(current, ev)
	if reconcile.Changed(current, next) {
		next.UpdatedAt = time.Now()
		store.Replace(requestID, next)
	}
	if next.IsTerminal() {
		delete(s.active, kind)
		s.logger.Info(logModule, "turn finished", map[string]interface{}{
			"request_id": requestID,
			"kind":       string(kind),
			"status":     string(next.Status),
		})
	}
}

// fail cancels the active stream and fails its turn with message.
func (s *Session) fail(kind model.Kind, requestID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := s.active[kind]
	if token == nil || token.requestID != requestID {
		return
	}
	if token.stream != nil {
		token.stream.Cancel()
	}
	s.applyLocked(kind, requestID, model.ErrorEvent(message))
}

// turnSink routes one stream's callbacks into the session.
type turnSink struct {
	session   *Session
	kind      model.Kind
	requestID string
}

func (t *turnSink) OnEvent(ev model.Event) {
	if ev.RequestID != "" && ev.RequestID != t.requestID {
		t.session.logger.Debug(logModule, "frame echoes another request id", map[string]interface{}{
			"request_id": t.requestID,
			"echoed":     ev.RequestID,
		})
	}
	t.session.apply(t.kind, t.requestID, ev)
}

func (t *turnSink) OnStreamError(err error) {
	s := t.session

	if !stream.IsTerminal(err) {
		s.logger.Warn(logModule, "undecodable frame", map[string]interface{}{
			"request_id": t.requestID,
			"error":      err,
		})
		if s.decodeErrorsFailTurn {
			s.fail(t.kind, t.requestID, "")
		}
		return
	}

	message := ""
	var transportErr *stream.TransportError
	if errors.As(err, &transportErr) {
		message = transportErr.ServerMessage()
	}
	s.logger.Warn(logModule, "stream failed", map[string]interface{}{
		"request_id": t.requestID,
		"error":      err,
	})
	s.apply(t.kind, t.requestID, model.ErrorEvent(message))
}

func (t *turnSink) OnStreamClosed() {
	// A turn that is already terminal is left as is by the reducer.
	t.session.apply(t.kind, t.requestID, model.ErrorEvent(ClosedEarlyMessage))
}

// =============================================================================
// RESET / CLOSE
// =============================================================================

// Reset cancels the kind's active stream and clears its transcript, which
// also removes the persisted copy.
func (s *Session) Reset(kind model.Kind) error {
	store, err := s.Store(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(kind)
	store.Reset()

	s.logger.Info(logModule, "transcript reset", map[string]interface{}{
		"session_id": s.id,
		"kind":       string(kind),
	})
	return nil
}

// Cancel aborts the kind's active stream and fails its turn. It reports
// whether a turn was in progress.
func (s *Session) Cancel(kind model.Kind) bool {
	s.mu.Lock()
	token := s.active[kind]
	s.mu.Unlock()
	if token == nil {
		return false
	}
	s.fail(kind, token.requestID, CancelledMessage)
	return true
}

// Close cancels every active stream and stops persisting. Turns still in
// progress are persisted as they are and reported interrupted on next load.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, kind := range model.Kinds {
		s.cancelLocked(kind)
	}
	s.mu.Unlock()

	for _, unsubscribe := range s.unsubs {
		unsubscribe()
	}
}

func (s *Session) cancelLocked(kind model.Kind) {
	token := s.active[kind]
	if token == nil {
		return
	}
	if token.stream != nil {
		token.stream.Cancel()
	}
	delete(s.active, kind)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/chatbi/internal/logging"
	"github.com/jeranaias/chatbi/internal/model"
)

const (
	// HistoryKeyPrefix prefixes every persisted transcript key.
	HistoryKeyPrefix = "chat_view_history"

	// CurrentSessionKey holds the id of the last active session.
	CurrentSessionKey = "session:current"

	logModule = "storage"
)

// =============================================================================
// RECORD
// =============================================================================

// Record is one persisted transcript.
type Record struct {
	SessionID string
	Kind      model.Kind
	Title     string
	Turns     []model.Turn
}

// UpdatedAt returns the most recent turn update time.
func (r *Record) UpdatedAt() time.Time {
	var latest time.Time
	for _, t := range r.Turns {
		if t.UpdatedAt.After(latest) {
			latest = t.UpdatedAt
		}
	}
	return latest
}

// TurnsField returns the JSON field the turns are stored under for kind.
func TurnsField(kind model.Kind) string {
	if kind == model.KindAnalysis {
		return "dataChatList"
	}
	return "chatList"
}

// HistoryKey returns the KV key for a transcript.
func HistoryKey(sessionID string, kind model.Kind) string {
	return HistoryKeyPrefix + ":" + string(kind) + ":" + sessionID
}

// ParseHistoryKey splits a key produced by HistoryKey.
func ParseHistoryKey(key string) (sessionID string, kind model.Kind, ok bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] != HistoryKeyPrefix || parts[2] == "" {
		return "", "", false
	}
	switch model.Kind(parts[1]) {
	case model.KindAgent, model.KindAnalysis:
		return parts[2], model.Kind(parts[1]), true
	}
	return "", "", false
}

// EncodeRecord serializes a record as {<turnsField>, title, sessionId}.
func EncodeRecord(rec *Record) ([]byte, error) {
	turns := rec.Turns
	if turns == nil {
		turns = []model.Turn{}
	}
	return json.Marshal(map[string]any{
		TurnsField(rec.Kind): turns,
		"title":              rec.Title,
		"sessionId":          rec.SessionID,
	})
}

// DecodeRecord parses a persisted record for kind. The legacy chatTitle field
// is accepted when title is absent.
func DecodeRecord(kind model.Kind, data []byte) (*Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed record: %w", err)
	}

	turnsRaw, ok := raw[TurnsField(kind)]
	if !ok {
		return nil, fmt.Errorf("record has no %s field", TurnsField(kind))
	}
	var turns []model.Turn
	if err := json.Unmarshal(turnsRaw, &turns); err != nil {
		return nil, fmt.Errorf("malformed %s: %w", TurnsField(kind), err)
	}
	for i, t := range turns {
		if t.RequestID == "" || !t.Status.IsValid() {
			return nil, fmt.Errorf("turn %d does not match the record schema", i)
		}
		turns[i].Kind = kind
	}

	rec := &Record{Kind: kind, Turns: turns}
	for _, field := range []string{"title", "chatTitle"} {
		if v, ok := raw[field]; ok && rec.Title == "" {
			_ = json.Unmarshal(v, &rec.Title)
		}
	}
	if v, ok := raw["sessionId"]; ok {
		_ = json.Unmarshal(v, &rec.SessionID)
	}
	return rec, nil
}

// =============================================================================
// PERSISTENCE ERROR
// =============================================================================

// PersistenceError describes a failed storage read or write. Bridge logs these
// and never returns them from Load or Save.
type PersistenceError struct {
	Op  string // "load", "save", "delete"
	Key string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// =============================================================================
// BRIDGE
// =============================================================================

// SessionMeta summarizes one persisted transcript for listing.
type SessionMeta struct {
	SessionID string
	Kind      model.Kind
	Title     string
	TurnCount int
	UpdatedAt time.Time
}

// Bridge mirrors transcripts into a KV.
type Bridge struct {
	kv     KV
	logger logging.Logger

	// Serializes writes from both transcripts of a session.
	mu sync.Mutex
}

// NewBridge creates a bridge over kv.
func NewBridge(kv KV, logger logging.Logger) *Bridge {
	return &Bridge{kv: kv, logger: logging.OrNop(logger)}
}

// Load reads a persisted transcript. Missing, malformed or mismatched data
// all report (nil, false).
func (b *Bridge) Load(sessionID string, kind model.Kind) (*Record, bool) {
	key := HistoryKey(sessionID, kind)

	data, err := b.kv.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.report(&PersistenceError{Op: "load", Key: key, Err: err})
		}
		return nil, false
	}

	rec, err := DecodeRecord(kind, data)
	if err != nil {
		b.report(&PersistenceError{Op: "load", Key: key, Err: err})
		return nil, false
	}
	if rec.SessionID == "" {
		rec.SessionID = sessionID
	}
	return rec, true
}

// Save writes a transcript, or removes it when turns is empty.
func (b *Bridge) Save(sessionID string, kind model.Kind, title string, turns []model.Turn) {
	if len(turns) == 0 {
		b.Delete(sessionID, kind)
		return
	}

	key := HistoryKey(sessionID, kind)
	data, err := EncodeRecord(&Record{SessionID: sessionID, Kind: kind, Title: title, Turns: turns})
	if err != nil {
		b.report(&PersistenceError{Op: "save", Key: key, Err: err})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.kv.Set(key, data); err != nil {
		b.report(&PersistenceError{Op: "save", Key: key, Err: err})
	}
}

// Delete removes a persisted transcript.
func (b *Bridge) Delete(sessionID string, kind model.Kind) {
	key := HistoryKey(sessionID, kind)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.kv.Delete(key); err != nil {
		b.report(&PersistenceError{Op: "delete", Key: key, Err: err})
	}
}

// Sessions lists persisted transcripts, most recently updated first.
func (b *Bridge) Sessions() ([]SessionMeta, error) {
	keys, err := b.kv.Keys(HistoryKeyPrefix + ":")
	if err != nil {
		return nil, &PersistenceError{Op: "list", Key: HistoryKeyPrefix, Err: err}
	}

	metas := []SessionMeta{}
	for _, key := range keys {
		sessionID, kind, ok := ParseHistoryKey(key)
		if !ok {
			continue
		}
		rec, ok := b.Load(sessionID, kind)
		if !ok {
			continue // Skip corrupted records
		}
		metas = append(metas, SessionMeta{
			SessionID: sessionID,
			Kind:      kind,
			Title:     rec.Title,
			TurnCount: len(rec.Turns),
			UpdatedAt: rec.UpdatedAt(),
		})
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Clear removes every persisted transcript and returns how many were removed.
func (b *Bridge) Clear() (int, error) {
	keys, err := b.kv.Keys(HistoryKeyPrefix + ":")
	if err != nil {
		return 0, &PersistenceError{Op: "list", Key: HistoryKeyPrefix, Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if err := b.kv.Delete(key); err != nil {
			return removed, &PersistenceError{Op: "delete", Key: key, Err: err}
		}
		removed++
	}
	return removed, nil
}

// CurrentSession returns the id of the last active session.
func (b *Bridge) CurrentSession() (string, bool) {
	data, err := b.kv.Get(CurrentSessionKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.report(&PersistenceError{Op: "load", Key: CurrentSessionKey, Err: err})
		}
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}

// SetCurrentSession remembers id as the active session.
func (b *Bridge) SetCurrentSession(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.kv.Set(CurrentSessionKey, []byte(id)); err != nil {
		b.report(&PersistenceError{Op: "save", Key: CurrentSessionKey, Err: err})
	}
}

func (b *Bridge) report(err *PersistenceError) {
	b.logger.Warn(logModule, "persistence failure ignored", map[string]interface{}{
		"op":    err.Op,
		"key":   err.Key,
		"error": err,
	})
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the ordered turns of one transcript and notifies
// observers when they change.
//
// A Store is the single owner of its turns. Renderers and persistence read it
// through Projection or a Subscribe callback; nothing else holds a mutable
// reference.
package transcript

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jeranaias/chatbi/internal/model"
)

// Error variables for store preconditions.
var (
	// ErrInvalidState indicates an append while the previous turn is unresolved.
	ErrInvalidState = errors.New("previous turn is still in progress")

	// ErrDuplicateTurn indicates an append reusing an existing request id.
	ErrDuplicateTurn = errors.New("turn already exists")

	// ErrWrongKind indicates a turn routed to the other transcript's store.
	ErrWrongKind = errors.New("turn belongs to another transcript")
)

// Projection is an immutable ordered view of a store at one point in time.
type Projection struct {
	Kind  model.Kind
	Seq   uint64 // Increments on every mutation
	Turns []model.Turn
}

// Len returns the number of turns.
func (p Projection) Len() int {
	return len(p.Turns)
}

// Last returns the most recent turn.
func (p Projection) Last() (model.Turn, bool) {
	if len(p.Turns) == 0 {
		return model.Turn{}, false
	}
	return p.Turns[len(p.Turns)-1], true
}

// Busy reports whether the most recent turn is still in progress.
func (p Projection) Busy() bool {
	last, ok := p.Last()
	return ok && !last.IsTerminal()
}

// Observer receives a projection after each mutation. Observers are called in
// mutation order, outside the store lock, and must not mutate the store.
type Observer func(Projection)

// Store is the ordered turn list for one transcript kind.
type Store struct {
	kind model.Kind

	mu    sync.Mutex
	turns []model.Turn
	seq   uint64

	// notifyMu keeps observer calls in mutation order.
	notifyMu  sync.Mutex
	observers map[int]Observer
	nextObs   int
}

// NewStore creates an empty store for kind.
func NewStore(kind model.Kind) *Store {
	return &Store{
		kind:      kind,
		observers: make(map[int]Observer),
	}
}

// Kind returns the transcript kind this store holds.
func (s *Store) Kind() model.Kind {
	return s.kind
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Append adds a new turn. It fails with ErrInvalidState when the last turn is
// not yet complete or failed.
func (s *Store) Append(turn model.Turn) error {
	s.mu.Lock()

	if turn.Kind == "" {
		turn.Kind = s.kind
	}
	if turn.Kind != s.kind {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s turn in %s store", ErrWrongKind, turn.Kind, s.kind)
	}
	if n := len(s.turns); n > 0 && !s.turns[n-1].IsTerminal() {
		last := s.turns[n-1]
		s.mu.Unlock()
		return fmt.Errorf("%w: turn %s is %s", ErrInvalidState, last.RequestID, last.Status)
	}
	if s.indexLocked(turn.RequestID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateTurn, turn.RequestID)
	}

	s.turns = append(s.turns, turn.Clone())
	s.commitLocked()
	return nil
}

// Replace swaps the turn with the given id for next and reports whether it
// did. A missing id, a terminal stored turn, or a status that would move
// backwards leaves the store unchanged.
func (s *Store) Replace(turnID string, next model.Turn) bool {
	s.mu.Lock()

	i := s.indexLocked(turnID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	current := s.turns[i]
	if current.IsTerminal() || statusRank(next.Status) < statusRank(current.Status) {
		s.mu.Unlock()
		return false
	}

	next = next.Clone()
	// Identity and query are fixed for the turn's lifetime.
	next.RequestID = current.RequestID
	next.Kind = current.Kind
	next.Query = current.Query
	next.Files = current.Files
	next.CreatedAt = current.CreatedAt

	s.turns[i] = next
	s.commitLocked()
	return true
}

// Reset removes every turn.
func (s *Store) Reset() {
	s.mu.Lock()
	s.turns = nil
	s.commitLocked()
}

// Restore replaces the contents with previously persisted turns.
func (s *Store) Restore(turns []model.Turn) {
	s.mu.Lock()
	s.turns = make([]model.Turn, 0, len(turns))
	for _, t := range turns {
		t = t.Clone()
		t.Kind = s.kind
		s.turns = append(s.turns, t)
	}
	s.commitLocked()
}

// commitLocked bumps the sequence, releases s.mu and notifies observers.
// Must be called with s.mu held.
func (s *Store) commitLocked() {
	s.seq++
	p := s.projectionLocked()

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, id := range sortedKeys(s.observers) {
		s.observers[id](p)
	}
}

// =============================================================================
// READS
// =============================================================================

// Projection returns an immutable view reflecting every completed mutation.
func (s *Store) Projection() Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectionLocked()
}

// Get returns the turn with the given id.
func (s *Store) Get(turnID string) (model.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(turnID); i >= 0 {
		return s.turns[i].Clone(), true
	}
	return model.Turn{}, false
}

// Last returns the most recent turn.
func (s *Store) Last() (model.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == 0 {
		return model.Turn{}, false
	}
	return s.turns[len(s.turns)-1].Clone(), true
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Busy reports whether the most recent turn is still in progress.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.turns)
	return n > 0 && !s.turns[n-1].IsTerminal()
}

// Subscribe registers fn for every future mutation and returns a function
// that removes it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.notifyMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.observers, id)
			s.notifyMu.Unlock()
		})
	}
}

func (s *Store) projectionLocked() Projection {
	turns := make([]model.Turn, len(s.turns))
	for i, t := range s.turns {
		turns[i] = t.Clone()
	}
	return Projection{Kind: s.kind, Seq: s.seq, Turns: turns}
}

func (s *Store) indexLocked(turnID string) int {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].RequestID == turnID {
			return i
		}
	}
	return -1
}

func statusRank(st model.Status) int {
	switch st {
	case model.StatusPending:
		return 0
	case model.StatusStreaming:
		return 1
	case model.StatusComplete, model.StatusFailed:
		return 2
	}
	return -1
}

func sortedKeys(m map[int]Observer) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/transcript"
)

// =============================================================================
// PROJECTION FORWARDER
// =============================================================================

// Forwarder relays store projections to a Bubble Tea program.
//
// Observe is called inside the store's notification path, so it only records
// the projection and returns. Run delivers the newest projection of each
// transcript; intermediate ones superseded before delivery are dropped, which
// is safe because every projection is a full snapshot.
type Forwarder struct {
	send func(tea.Msg)

	mu      sync.Mutex
	pending map[model.Kind]transcript.Projection

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewForwarder creates a forwarder that delivers with send, usually a
// program's Send method.
func NewForwarder(send func(tea.Msg)) *Forwarder {
	return &Forwarder{
		send:    send,
		pending: make(map[model.Kind]transcript.Projection),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Observe records p for delivery. It never blocks.
func (f *Forwarder) Observe(p transcript.Projection) {
	f.mu.Lock()
	if prev, ok := f.pending[p.Kind]; !ok || p.Seq >= prev.Seq {
		f.pending[p.Kind] = p
	}
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Run delivers pending projections until Close. Run it in its own goroutine.
func (f *Forwarder) Run() {
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
			for _, p := range f.drain() {
				select {
				case <-f.done:
					return
				default:
				}
				f.send(ProjectionMsg{Projection: p})
			}
		}
	}
}

// drain takes every pending projection in transcript order.
func (f *Forwarder) drain() []transcript.Projection {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]transcript.Projection, 0, len(f.pending))
	for _, kind := range model.Kinds {
		if p, ok := f.pending[kind]; ok {
			out = append(out, p)
			delete(f.pending, kind)
		}
	}
	return out
}

// Close stops Run. Projections still pending are dropped.
func (f *Forwarder) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
	})
}

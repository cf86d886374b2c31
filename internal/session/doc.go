// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session ties the streaming client, the reducers and the transcript
// stores together for one chat session.
//
// A Session owns the session id, one transcript store per kind (agent and
// analysis) and the persistence bridge. Every stream callback is applied on a
// single mutation path guarded by the session mutex, so the read-modify-write
// of a Turn finishes before the next frame is applied.
//
// # Key Types
//
//   - Session: submission, reconciliation and reset for both transcripts
//   - Opener: the streaming transport (ClientOpener adapts *stream.Client)
//   - Options: construction parameters
//
// # Usage
//
//	sess, err := session.New(session.Options{
//	    Opener: session.ClientOpener(client),
//	    Bridge: bridge,
//	    Model:  "qwen-plus",
//	})
//	turn, err := sess.Submit(ctx, model.KindAgent, "sales by region", nil)
//	final, err := sess.Await(ctx, model.KindAgent, turn.RequestID)
//
// # Late callbacks
//
// Each kind has at most one active stream. Reset and Close cancel it and
// forget its request id, so callbacks that arrive afterwards are dropped.
package session

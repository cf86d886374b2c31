// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream opens Server-Sent-Events requests against the ChatBI
// backend and delivers decoded frames to a Sink.
//
// # Contract
//
// Client.Open returns immediately. Frames are read on one goroutine and passed
// to Sink.OnEvent in receipt order, at most once each. Exactly one terminal
// callback follows: OnStreamClosed when the server ends the stream, or
// OnStreamError with a *TransportError when the connection fails or the
// context is cancelled.
//
// A frame that cannot be decoded is reported through OnStreamError as a
// *DecodeError and the stream keeps going. Callers tell the two apart with
// IsTerminal or errors.As. Nothing is retried.
//
// # Usage
//
//	client, err := stream.NewClient(stream.Options{BaseURL: "http://localhost:8000"})
//	// sink implements OnEvent, OnStreamError and OnStreamClosed
//	h := client.Open(ctx, stream.Request{...}, sink)
//	<-h.Done()
package stream

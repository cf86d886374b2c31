// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures reconciled by chatbi.
//
// A Turn is one user query and the answer streamed back for it. Turns belong
// to a transcript of a single Kind (agent or analysis) and move through the
// Status lifecycle pending -> streaming -> complete|failed. Events are the
// decoded frames of the streaming protocol.
//
// # Key Types
//
//   - Turn: one exchange, mutated only by the reconcile package
//   - Status: pending, streaming, complete, failed
//   - Kind: transcript kind (agent, analysis)
//   - Event: decoded stream frame {type, message, finished}
//
// # Usage
//
//	turn := model.NewTurn(model.KindAnalysis, requestID, "Top 10 products", nil)
//	if turn.Status.IsTerminal() {
//	    // render content or error
//	}
package model

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reconcile folds streamed events into Turn state.
//
// A Reducer is a pure function of (Turn, Event). Each response event carries
// the cumulative answer, so content is replaced wholesale rather than appended,
// and the structured payload is re-extracted from the full text every time.
//
// State machine:
//
//	pending   --start-->              streaming
//	pending   --response(finished)--> complete
//	streaming --response-->           streaming | complete
//	pending|streaming --error-->      failed
//	complete, failed: terminal, further events ignored
//
// # Usage
//
//	r := reconcile.ForKind(model.KindAnalysis)
//	turn = r.Apply(turn, model.ResponseEvent(text, true))
package reconcile

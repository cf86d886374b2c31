// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reconcile

import (
	"reflect"

	"github.com/jeranaias/chatbi/internal/model"
)

// =============================================================================
// REDUCER
// =============================================================================

// Reducer applies stream events to a Turn. The two transcript kinds share the
// event taxonomy and differ in the notes they fall back to.
type Reducer struct {
	Kind model.Kind

	// DefaultProgress is shown when a start event carries no message.
	DefaultProgress string

	// ErrorFallback is recorded when an error event carries no message.
	ErrorFallback string

	// ExtractPayload enables structured-payload extraction on response events.
	ExtractPayload bool
}

var (
	// Agent reconciles the multi-step agent transcript.
	Agent = Reducer{
		Kind:            model.KindAgent,
		DefaultProgress: "We have received your task and will start processing it immediately",
		ErrorFallback:   "An error occurred while processing the request",
		ExtractPayload:  true,
	}

	// Analysis reconciles the data-analysis transcript.
	Analysis = Reducer{
		Kind:            model.KindAnalysis,
		DefaultProgress: "Processing",
		ErrorFallback:   "Error Occurred While Processing Request",
		ExtractPayload:  true,
	}
)

// ForKind returns the reducer for a transcript kind.
func ForKind(k model.Kind) Reducer {
	if k == model.KindAnalysis {
		return Analysis
	}
	return Agent
}

// Apply returns the Turn that results from ev. The input is never modified;
// terminal turns and unknown event types come back unchanged.
func (r Reducer) Apply(t model.Turn, ev model.Event) model.Turn {
	if t.Status.IsTerminal() {
		return t
	}

	switch ev.Type {
	case model.EventStart:
		next := t.Clone()
		// start is optional and only ever advances pending.
		if next.Status == model.StatusPending {
			next.Status = model.StatusStreaming
		}
		next.ProgressNote = ev.Message
		if next.ProgressNote == "" {
			next.ProgressNote = r.DefaultProgress
		}
		return next

	case model.EventResponse:
		next := t.Clone()
		next.Content = ev.Message
		next.ProgressNote = ""
		if ev.Finished {
			next.Status = model.StatusComplete
		} else {
			next.Status = model.StatusStreaming
		}
		if r.ExtractPayload {
			if payload := ExtractPayload(ev.Message); payload != nil {
				next.StructuredPayload = payload
			}
		}
		return next

	case model.EventError:
		next := t.Clone()
		next.Status = model.StatusFailed
		next.ErrorMessage = ev.Message
		if next.ErrorMessage == "" {
			next.ErrorMessage = r.ErrorFallback
		}
		return next
	}

	return t
}

// ApplyAll folds a sequence of events in order.
func (r Reducer) ApplyAll(t model.Turn, events ...model.Event) model.Turn {
	for _, ev := range events {
		t = r.Apply(t, ev)
	}
	return t
}

// Changed reports whether next differs from prev in any reconciled field.
// Callers use it to skip redundant store writes for repeated frames.
func Changed(prev, next model.Turn) bool {
	return prev.Status != next.Status ||
		prev.ProgressNote != next.ProgressNote ||
		prev.Content != next.Content ||
		prev.ErrorMessage != next.ErrorMessage ||
		!reflect.DeepEqual(prev.StructuredPayload, next.StructuredPayload)
}

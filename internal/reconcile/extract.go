// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reconcile

import (
	"encoding/json"
	"regexp"
)

// =============================================================================
// STRUCTURED PAYLOAD EXTRACTION
// =============================================================================

// The scanner is heuristic on purpose: answers are free-form model output, so
// a malformed candidate is skipped and a miss is not an error.

// fenceRe matches ``` fenced blocks, optionally tagged json/JSON.
var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// recognizedKeys mark an object as a chart or table specification.
var recognizedKeys = []string{
	"series",
	"dimCols",
	"measureCols",
	"dataList",
	"option",
	"chartSuggest",
	"xAxis",
}

// nestedConfigKey wraps a chart specification one level down.
const nestedConfigKey = "chart_config"

// ExtractPayload returns the first chart/table object found in text, or nil.
// Fenced code blocks are the candidates when any exist; otherwise balanced
// brace substrings are. It is deterministic in text alone.
func ExtractPayload(text string) map[string]any {
	if text == "" {
		return nil
	}
	for _, candidate := range Candidates(text) {
		if payload := recognize(candidate); payload != nil {
			return payload
		}
	}
	return nil
}

// Candidates lists the substrings ExtractPayload will try to parse, in order.
func Candidates(text string) []string {
	var candidates []string
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			candidates = append(candidates, m[1])
		}
	}
	if len(candidates) > 0 {
		return candidates
	}
	return braceCandidates(text)
}

// braceCandidates returns top-level balanced {...} substrings. A stray closing
// brace at depth zero is ignored; an unclosed object yields nothing.
func braceCandidates(text string) []string {
	var candidates []string
	depth := 0
	start := -1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				snippet := text[start : i+1]
				if len(snippet) > 2 {
					candidates = append(candidates, snippet)
				}
				start = -1
			}
		}
	}
	return candidates
}

// recognize parses candidate and returns it (or its nested chart config) when
// it looks like a chart specification. A nested config is taken whenever it
// is an object, even an empty one; scalar configs cannot be a payload.
func recognize(candidate string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil || obj == nil {
		return nil
	}
	for _, key := range recognizedKeys {
		if _, ok := obj[key]; ok {
			return obj
		}
	}
	if nested, ok := obj[nestedConfigKey].(map[string]any); ok && nested != nil {
		return nested
	}
	return nil
}

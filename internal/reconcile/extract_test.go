// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPayload_FencedBlock(t *testing.T) {
	text := "Here is the chart:\n```json\n{\"series\":[{\"name\":\"sales\",\"data\":[1,2,3]}]}\n```\nDone."

	payload := ExtractPayload(text)
	require.NotNil(t, payload)
	assert.Contains(t, payload, "series")
}

func TestExtractPayload_UntaggedFence(t *testing.T) {
	payload := ExtractPayload("```\n{\"dimCols\":[\"region\"],\"measureCols\":[\"total\"]}\n```")
	require.NotNil(t, payload)
	assert.Equal(t, []any{"region"}, payload["dimCols"])
}

func TestExtractPayload_BareBraces(t *testing.T) {
	payload := ExtractPayload(`The result {"dataList":[{"a":1}]} was computed.`)
	require.NotNil(t, payload)
	assert.Contains(t, payload, "dataList")
}

func TestExtractPayload_NestedChartConfig(t *testing.T) {
	payload := ExtractPayload(`{"chart_config":{"title":"Revenue","type":"bar"}}`)
	assert.Equal(t, map[string]any{"title": "Revenue", "type": "bar"}, payload)
}

func TestExtractPayload_RecognizedKeyWinsOverNesting(t *testing.T) {
	payload := ExtractPayload(`{"option":{},"chart_config":{"type":"bar"}}`)
	require.NotNil(t, payload)
	assert.Contains(t, payload, "option")
}

func TestExtractPayload_FirstMatchWins(t *testing.T) {
	text := "```json\n{\"note\":1}\n```\n```json\n{\"xAxis\":{}}\n```\n```json\n{\"series\":[]}\n```"
	payload := ExtractPayload(text)
	require.NotNil(t, payload)
	assert.Contains(t, payload, "xAxis")
}

func TestExtractPayload_FencesShadowBraces(t *testing.T) {
	// Fenced candidates exist, so the bare object is never considered.
	text := "```python\nprint(1)\n```\nand {\"series\":[1]}"
	assert.Nil(t, ExtractPayload(text))
}

func TestExtractPayload_Misses(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"prose", "no json here at all"},
		{"unrecognized keys", `{"foo":"bar"}`},
		{"malformed", `{"series": [1, 2,}`},
		{"unclosed", `{"series": [1, 2]`},
		{"empty object", `{}`},
		{"array fence", "```json\n[1,2,3]\n```"},
		{"scalar nested config", `{"chart_config":"bar"}`},
		{"null nested config", `{"chart_config":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ExtractPayload(tt.text))
		})
	}
}

func TestExtractPayload_SkipsMalformedCandidate(t *testing.T) {
	text := `first {not json} then {"measureCols":["x"]}`
	payload := ExtractPayload(text)
	require.NotNil(t, payload)
	assert.Contains(t, payload, "measureCols")
}

func TestExtractPayload_EmptyNestedConfig(t *testing.T) {
	payload := ExtractPayload(`{"chart_config":{}}`)
	require.NotNil(t, payload)
	assert.Empty(t, payload)
}

func TestCandidates_BraceScanning(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"stray close ignored", `} {"a":1}`, []string{`{"a":1}`}},
		{"nested kept whole", `x {"a":{"b":2}} y`, []string{`{"a":{"b":2}}`}},
		{"two siblings", `{"a":1} and {"b":2}`, []string{`{"a":1}`, `{"b":2}`}},
		{"too short", `{} {x}`, []string{`{x}`}},
		{"unclosed", `{"a":1`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Candidates(tt.text))
		})
	}
}

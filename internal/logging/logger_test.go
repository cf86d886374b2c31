// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestZapLogger_WritesModuleAndDetails(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core)

	l.Info("stream", "opened", map[string]interface{}{"request_id": "r1"})
	l.Error("storage", "save failed", map[string]interface{}{"error": errors.New("disk full")})
	l.Debug("session", "no details", nil)

	entries := logs.All()
	require.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, "stream", first["module"])
	assert.Equal(t, map[string]interface{}{"request_id": "r1"}, first["details"])

	second := entries[1].ContextMap()
	assert.Equal(t, "disk full", second["error"])
}

func TestNewZapLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatbi.log")

	l, err := NewZapLogger(Options{File: path, Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, path, l.FilePath())

	l.Warn("config", "reloaded", map[string]interface{}{"path": "/tmp/x"})
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var record map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "reloaded", record["message"])
	assert.Equal(t, "config", record["module"])
}

func TestNewZapLogger_NoSinks(t *testing.T) {
	l, err := NewZapLogger(Options{})
	require.NoError(t, err)
	l.Info("x", "dropped", nil)
	assert.Empty(t, l.FilePath())
}

func TestNewZapLogger_BadLevel(t *testing.T) {
	_, err := NewZapLogger(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := Nop()
	assert.Same(t, l, OrNop(l))
}

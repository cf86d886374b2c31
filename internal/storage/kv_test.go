// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns one fresh instance of every KV implementation.
func backends(t *testing.T) map[string]KV {
	t.Helper()

	fileKV, err := NewFileKV(filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)

	sqliteKV, err := NewSQLiteKV(filepath.Join(t.TempDir(), "chatbi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteKV.Close() })

	return map[string]KV{
		BackendFile:   fileKV,
		BackendSQLite: sqliteKV,
	}
}

func TestKV_GetSetDelete(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set("chat_view_history:agent:s1", []byte(`{"a":1}`)))
			got, err := kv.Get("chat_view_history:agent:s1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":1}`, string(got))

			require.NoError(t, kv.Set("chat_view_history:agent:s1", []byte(`{"a":2}`)))
			got, _ = kv.Get("chat_view_history:agent:s1")
			assert.JSONEq(t, `{"a":2}`, string(got))

			require.NoError(t, kv.Delete("chat_view_history:agent:s1"))
			_, err = kv.Get("chat_view_history:agent:s1")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, kv.Delete("never-existed"))
		})
	}
}

func TestKV_KeysByPrefix(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{
				"chat_view_history:analysis:s2",
				"chat_view_history:agent:s1",
				"session:current",
				"chatXview_history:agent:s3",
			} {
				require.NoError(t, kv.Set(k, []byte("x")))
			}

			keys, err := kv.Keys("chat_view_history:")
			require.NoError(t, err)
			assert.Equal(t, []string{
				"chat_view_history:agent:s1",
				"chat_view_history:analysis:s2",
			}, keys)

			all, err := kv.Keys("")
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestFileKV_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "!!!.json"), []byte("x"), 0600))
	require.NoError(t, kv.Set("k", []byte("v")))

	keys, err := kv.Keys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chatbi.db")

	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set("k", []byte("v")))
	require.NoError(t, kv.Close())

	kv, err = NewSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()

	got, err := kv.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
	assert.Equal(t, path, kv.Path())
}

func TestOpenKV(t *testing.T) {
	dir := t.TempDir()

	kv, err := OpenKV(Options{Dir: filepath.Join(dir, "files")})
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)

	kv, err = OpenKV(Options{Backend: "SQLite", SQLitePath: filepath.Join(dir, "db.sqlite")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteKV{}, kv)
	kv.Close()

	_, err = OpenKV(Options{Backend: "redis"})
	assert.Error(t, err)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KV is the key-value collaborator transcripts are mirrored into.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys lists keys starting with prefix, sorted.
	Keys(prefix string) ([]string, error)

	Close() error
}

// Backend names accepted by OpenKV.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Options selects and configures a KV backend.
type Options struct {
	Backend string // "file" (default) or "sqlite"

	// Dir is the FileKV directory. Default: ~/.chatbi/history
	Dir string

	// SQLitePath is the SQLiteKV database. Default: ~/.chatbi/chatbi.db
	SQLitePath string
}

// OpenKV opens the backend named in opts.
func OpenKV(opts Options) (KV, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		dir := opts.Dir
		if dir == "" {
			d, err := defaultPath("history")
			if err != nil {
				return nil, err
			}
			dir = d
		}
		return NewFileKV(dir)
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			p, err := defaultPath("chatbi.db")
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewSQLiteKV(path)
	}
	return nil, fmt.Errorf("unknown storage backend %q (want file or sqlite)", opts.Backend)
}

func defaultPath(name string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".chatbi", name), nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when a key doesn't exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &StorageError{Message: "key not found"}

// StorageError represents a KV-level error.
// It implements the error interface and can be compared using errors.Is.
type StorageError struct {
	Message string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing storage errors.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

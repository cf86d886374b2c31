// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeranaias/chatbi/internal/util"
)

// =============================================================================
// FILE KV
// =============================================================================

// FileKV stores one file per key under BaseDir. Keys are base64url-encoded
// into file names so separators like ':' are safe on every platform.
type FileKV struct {
	// BaseDir is the directory holding the value files.
	BaseDir string

	mu sync.Mutex
}

const fileSuffix = ".json"

// NewFileKV creates a file-backed KV rooted at baseDir.
func NewFileKV(baseDir string) (*FileKV, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileKV{BaseDir: baseDir}, nil
}

// Get returns the value stored under key.
func (f *FileKV) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set writes value atomically.
func (f *FileKV) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(f.filePath(key), value, 0600)
}

// Delete removes key.
func (f *FileKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.filePath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Keys lists stored keys with the given prefix.
func (f *FileKV) Keys(prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	keys := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(entry.Name(), fileSuffix))
		if err != nil {
			continue // Not one of ours
		}
		if key := string(raw); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for FileKV.
func (f *FileKV) Close() error {
	return nil
}

// filePath returns the file path for a key.
func (f *FileKV) filePath(key string) string {
	return filepath.Join(f.BaseDir, base64.RawURLEncoding.EncodeToString([]byte(key))+fileSuffix)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/chatbi/internal/storage"
	"github.com/jeranaias/chatbi/internal/util"
)

// =============================================================================
// EXPORTER
// =============================================================================

// Exporter renders a stored transcript.
type Exporter interface {
	Export(rec *storage.Record) ([]byte, error)

	// FileExtension includes the dot, e.g. ".md".
	FileExtension() string

	MimeType() string
}

// Options configures an exporter.
type Options struct {
	// OutputDir is where ExportToFile creates its file.
	OutputDir string

	// IncludeMetadata adds the front matter and session header.
	IncludeMetadata bool

	// IncludeTimestamps adds per-turn times.
	IncludeTimestamps bool
}

// DefaultOptions exports into the working directory with metadata and
// timestamps.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// ForFormat returns the exporter for "md"/"markdown" (the default) or "json".
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	}
	return nil, fmt.Errorf("unsupported export format: %s (want md or json)", format)
}

// =============================================================================
// FILES
// =============================================================================

// ExportToFile writes rec to a new file in opts.OutputDir named after its
// kind, title and the current time, and returns the path.
func ExportToFile(rec *storage.Record, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	content, err := exporter.Export(rec)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	name := fmt.Sprintf("chatbi_%s_%s_%s%s",
		rec.Kind,
		sanitizeFilename(rec.Title),
		time.Now().Format("20060102_150405"),
		exporter.FileExtension())
	path := filepath.Join(opts.OutputDir, name)
	if err := WriteFile(path, content); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFile writes content to path atomically, creating parent directories.
func WriteFile(path string, content []byte) error {
	if err := util.AtomicWriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// sanitizeFilename turns a title into a portable file name fragment of at
// most 50 runes.
func sanitizeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '-'
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			return '_'
		case r < 32 || r == 127:
			return '-'
		}
		return r
	}, util.TruncateRunes(s, 50))
	if s == "" {
		return "transcript"
	}
	return s
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}

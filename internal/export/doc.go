// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders persisted transcripts to Markdown or JSON.
//
// # Key Types
//
//   - Exporter: format-specific renderer
//   - Options: export configuration options
//
// # Supported Formats
//
//   - Markdown: human-readable, one section per turn, payloads as JSON blocks
//   - JSON: the persisted record shape, indented
//
// # Usage
//
//	exporter, err := export.ForFormat("md", nil)
//	path, err := export.ExportToFile(rec, exporter, opts)
package export

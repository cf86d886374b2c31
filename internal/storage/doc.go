// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists transcripts so they survive restarts.
//
// # Key Types
//
//   - KV: minimal key-value collaborator (FileKV, SQLiteKV)
//   - Bridge: loads and saves one transcript per (session, kind)
//   - Record: the persisted shape of a transcript
//
// # Usage
//
//	kv, err := storage.OpenKV(storage.Options{Backend: "sqlite", SQLitePath: path})
//	bridge := storage.NewBridge(kv, logger)
//	rec, ok := bridge.Load(sessionID, model.KindAgent)
//	bridge.Save(sessionID, model.KindAgent, title, turns)
//
// # Key Layout
//
// Transcripts live under chat_view_history:<kind>:<sessionID>. The id of the
// last active session is kept under session:current.
//
// Bridge never returns persistence failures to its caller. They are logged as
// *PersistenceError and in-memory state is left alone.
package storage

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store provides the database collaborators driven by the harness.
//
// Both implementations persist simple key/value fixtures and expose
// ClearTestState, which the harness calls after every spec:
//
//   - FileStore keeps one SQLite file per database in a default directory on
//     the filesystem shim, and clearing removes every database file and the
//     scratch directory, leaving unrelated files alone.
//   - PostgresStore keeps fixtures in a migrated schema, and clearing
//     truncates every table except the migration bookkeeping.
package store

import (
	"context"
)

// Database is a fixture store that can be reset between specs.
type Database interface {
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) (string, bool, error)
	// Count returns the number of stored keys.
	Count(ctx context.Context) (int, error)
	// ClearTestState removes everything persisted so far. It is idempotent.
	ClearTestState(ctx context.Context) error
	// Close releases resources held by the store.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

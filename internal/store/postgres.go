// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// migrationsTable is golang-migrate's bookkeeping table; it survives resets.
const migrationsTable = "schema_migrations"

// poolIface is the subset of pgxpool.Pool used by PostgresStore. It is
// satisfied by pgxmock.PgxPoolIface in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore stores fixtures in PostgreSQL.
type PostgresStore struct {
	pool   poolIface
	logger *slog.Logger
}

var _ Database = (*PostgresStore)(nil)

// NewPostgresStore connects to the database at dsn. The pool connects
// lazily; call WaitReady before first use against a server that may still
// be starting.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("driver", DriverPostgres).Wrap(err)
	}
	return newPostgresStore(pool, logger), nil
}

func newPostgresStore(pool poolIface, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger.With("store", DriverPostgres)}
}

// WaitReady pings the server until it answers, retrying connection-class
// failures up to attempts times at the given interval. Any other failure
// is returned immediately.
func (s *PostgresStore) WaitReady(ctx context.Context, attempts uint64, interval time.Duration) error {
	backoff := retry.WithMaxRetries(attempts, retry.NewConstant(interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.pool.Ping(ctx)
		if err != nil && isTransientConnectError(err) {
			s.logger.DebugContext(ctx, "database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return oops.Code("STORE_NOT_READY").With("attempts", attempts).Wrap(err)
	}
	return nil
}

// isTransientConnectError reports whether err means "server not reachable
// yet" rather than a configuration or permission problem.
func isTransientConnectError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.CannotConnectNow ||
			pgerrcode.IsConnectionException(pgErr.Code)
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// Put stores value under key.
func (s *PostgresStore) Put(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fixtures (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return oops.With("operation", "put fixture").With("key", key).Wrap(err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM fixtures WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, oops.With("operation", "get fixture").With("key", key).Wrap(err)
	}
	return value, true, nil
}

// Count returns the number of fixtures.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fixtures`).Scan(&n); err != nil {
		return 0, oops.With("operation", "count fixtures").Wrap(err)
	}
	return n, nil
}

// ClearTestState truncates every table in the current schema except the
// migrations table, restarting identity sequences. A schema without tables
// is left alone.
func (s *PostgresStore) ClearTestState(ctx context.Context) error {
	tables, err := s.userTables(ctx)
	if err != nil {
		return oops.Code("STORE_CLEAR_FAILED").With("driver", DriverPostgres).Wrap(err)
	}
	if len(tables) == 0 {
		return nil
	}

	quoted := make([]string, len(tables))
	for i, t := range tables {
		quoted[i] = pgx.Identifier{t}.Sanitize()
	}
	stmt := "TRUNCATE TABLE " + strings.Join(quoted, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return oops.Code("STORE_CLEAR_FAILED").
			With("driver", DriverPostgres).
			With("tables", tables).
			Wrap(err)
	}
	s.logger.DebugContext(ctx, "test state cleared", "tables", len(tables))
	return nil
}

func (s *PostgresStore) userTables(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tablename FROM pg_catalog.pg_tables
		 WHERE schemaname = current_schema() AND tablename <> $1
		 ORDER BY tablename`,
		migrationsTable)
	if err != nil {
		return nil, oops.With("operation", "list tables").Wrap(err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, oops.With("operation", "scan table name").Wrap(err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate tables").Wrap(err)
	}
	return tables, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

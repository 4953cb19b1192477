// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/envsuite/internal/logging"
	"github.com/holomush/envsuite/pkg/errutil"
)

const listTablesQuery = `SELECT tablename FROM pg_catalog.pg_tables`

func TestPostgresStore_ClearTestState(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		errMsg    string
	}{
		{
			name: "truncates every user table",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"tablename"}).
					AddRow("fixtures").
					AddRow("Mixed Case")
				mock.ExpectQuery(listTablesQuery).
					WithArgs("schema_migrations").
					WillReturnRows(rows)
				mock.ExpectExec(`TRUNCATE TABLE "fixtures", "Mixed Case" RESTART IDENTITY CASCADE`).
					WillReturnResult(pgxmock.NewResult("TRUNCATE TABLE", 0))
			},
		},
		{
			name: "no tables is a no-op",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(listTablesQuery).
					WithArgs("schema_migrations").
					WillReturnRows(pgxmock.NewRows([]string{"tablename"}))
			},
		},
		{
			name: "listing fails",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(listTablesQuery).
					WithArgs("schema_migrations").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
			errMsg:  "connection refused",
		},
		{
			name: "truncate fails",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(listTablesQuery).
					WithArgs("schema_migrations").
					WillReturnRows(pgxmock.NewRows([]string{"tablename"}).AddRow("fixtures"))
				mock.ExpectExec(`TRUNCATE TABLE`).
					WillReturnError(errors.New("lock timeout"))
			},
			wantErr: true,
			errMsg:  "lock timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			s := newPostgresStore(mock, logging.Discard())
			err = s.ClearTestState(context.Background())

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "STORE_CLEAR_FAILED")
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestPostgresStore_PutGetCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO fixtures`).
		WithArgs("k", "v").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT value FROM fixtures WHERE key = \$1`).
		WithArgs("k").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("v"))
	mock.ExpectQuery(`SELECT value FROM fixtures WHERE key = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM fixtures`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	s := newPostgresStore(mock, logging.Discard())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", "v"))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO fixtures`).
		WithArgs("k", "v").
		WillReturnError(errors.New("relation \"fixtures\" does not exist"))

	s := newPostgresStore(mock, logging.Discard())
	err = s.Put(context.Background(), "k", "v")
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "key", "k")
}

func TestPostgresStore_WaitReady(t *testing.T) {
	t.Run("retries until the server accepts connections", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectPing().WillReturnError(&pgconn.PgError{Code: pgerrcode.CannotConnectNow})
		mock.ExpectPing().WillReturnError(&pgconn.PgError{Code: pgerrcode.ConnectionFailure})
		mock.ExpectPing()

		s := newPostgresStore(mock, logging.Discard())
		require.NoError(t, s.WaitReady(context.Background(), 5, time.Millisecond))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectPing().WillReturnError(&pgconn.PgError{Code: pgerrcode.InvalidPassword})

		s := newPostgresStore(mock, logging.Discard())
		err = s.WaitReady(context.Background(), 5, time.Millisecond)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "STORE_NOT_READY")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives up after the attempt budget", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		for range 3 {
			mock.ExpectPing().WillReturnError(&pgconn.PgError{Code: pgerrcode.CannotConnectNow})
		}

		s := newPostgresStore(mock, logging.Discard())
		err = s.WaitReady(context.Background(), 2, time.Millisecond)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "STORE_NOT_READY")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsTransientConnectError(t *testing.T) {
	assert.True(t, isTransientConnectError(&pgconn.PgError{Code: pgerrcode.CannotConnectNow}))
	assert.True(t, isTransientConnectError(&pgconn.PgError{Code: pgerrcode.ConnectionDoesNotExist}))
	assert.False(t, isTransientConnectError(&pgconn.PgError{Code: pgerrcode.InvalidPassword}))
	assert.False(t, isTransientConnectError(errors.New("boom")))
}

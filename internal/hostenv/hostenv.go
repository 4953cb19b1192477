// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package hostenv turns a run configuration into the capabilities the
// harness requires: a filesystem shim, a database collaborator, a title and
// an environment descriptor.
package hostenv

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/envsuite/internal/config"
	"github.com/holomush/envsuite/internal/fsshim"
	"github.com/holomush/envsuite/internal/harness"
	"github.com/holomush/envsuite/internal/store"
	"github.com/holomush/envsuite/internal/xdg"
)

// Connection readiness budget for PostgreSQL.
const (
	readyAttempts = 10
	readyInterval = 500 * time.Millisecond
)

// Host holds the capabilities built from a Config.
type Host struct {
	Config *config.Config
	FS     *fsshim.Dir
	// Database is nil when the configuration does not name one, so the
	// harness reports it as missing.
	Database store.Database
	// Files is the SQLite store when the sqlite driver is selected.
	Files  *store.FileStore
	Logger *slog.Logger
}

// Build creates the filesystem shim and database collaborator for cfg.
// PostgreSQL databases are waited for and migrated before Build returns.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = slog.Default()
	}

	root := cfg.Database.Dir
	if root == "" {
		dir, err := xdg.TestDataDir()
		if err != nil {
			return nil, oops.Code("HOST_BUILD_FAILED").Wrap(err)
		}
		root = dir
	}

	fsys, err := fsshim.New(root)
	if err != nil {
		return nil, err
	}

	host := &Host{Config: cfg, FS: fsys, Logger: logger}

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		files, err := store.NewFileStore(fsys, ".", logger)
		if err != nil {
			return nil, err
		}
		host.Files = files
		host.Database = files
	case config.DriverPostgres:
		if cfg.Database.URL == "" {
			logger.Warn("postgres selected without a connection string")
			break
		}
		pg, err := openPostgres(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, err
		}
		host.Database = pg
	default:
		return nil, oops.Code("HOST_BUILD_FAILED").
			With("driver", cfg.Database.Driver).
			Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	return host, nil
}

func openPostgres(ctx context.Context, url string, logger *slog.Logger) (*store.PostgresStore, error) {
	pg, err := store.NewPostgresStore(ctx, url, logger)
	if err != nil {
		return nil, err
	}
	if err := pg.WaitReady(ctx, readyAttempts, readyInterval); err != nil {
		_ = pg.Close()
		return nil, err
	}

	m, err := store.NewMigrator(url)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			logger.Warn("failed to close migrator", "error", cerr)
		}
	}()
	if err := m.Up(); err != nil {
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}

// HarnessConfig returns the harness configuration for this host.
func (h *Host) HarnessConfig(runner harness.Runner, reg prometheus.Registerer) harness.Config {
	cfg := harness.Config{
		Title:               h.Config.Title,
		FS:                  h.FS,
		Runner:              runner,
		Logger:              h.Logger,
		Registerer:          reg,
		AbortOnResetFailure: h.Config.AbortOnResetFailure,
	}
	if h.Config.Environment != nil {
		cfg.Environment = harness.Descriptor(h.Config.Environment)
	}
	if h.Database != nil {
		cfg.Database = h.Database
	}
	return cfg
}

// Close releases the database collaborator.
func (h *Host) Close() error {
	if h.Database == nil {
		return nil
	}
	return h.Database.Close()
}

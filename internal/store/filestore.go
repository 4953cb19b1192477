// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/samber/oops"
	// Register the pure-Go SQLite driver as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/holomush/envsuite/internal/fsshim"
)

const (
	// DefaultDatabaseName is the database used by Put, Get and Count.
	DefaultDatabaseName = "default"

	// ScratchDirName is the subdirectory of the default directory reserved
	// for files tests write through the filesystem shim. It is emptied by
	// every reset.
	ScratchDirName = "envsuite-scratch"

	fileExt         = ".db"
	lockFileName    = ".envsuite.lock"
	lockRetryDelay  = 50 * time.Millisecond
	schemaStatement = `CREATE TABLE IF NOT EXISTS records (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
)

var databaseNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// FileStore manages SQLite database files in a default directory.
type FileStore struct {
	fsys   fsshim.FS
	dir    string
	lock   *flock.Flock
	logger *slog.Logger

	mu   sync.Mutex
	open map[string]*FileDB
}

var _ Database = (*FileStore)(nil)

// NewFileStore returns a store whose default directory is dir, a
// slash-separated path relative to the root of fsys ("." for the root).
func NewFileStore(fsys fsshim.FS, dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if !fs.ValidPath(dir) {
		return nil, oops.Code("STORE_INVALID_DIR").With("dir", dir).Errorf("invalid default directory %q", dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("dir", dir).Wrap(err)
	}

	return &FileStore{
		fsys:   fsys,
		dir:    dir,
		lock:   flock.New(fsys.Abs(path.Join(dir, lockFileName))),
		logger: logger.With("store", DriverSQLite, "dir", fsys.Abs(dir)),
		open:   make(map[string]*FileDB),
	}, nil
}

// Dir returns the default directory, relative to the filesystem root.
func (s *FileStore) Dir() string { return s.dir }

// ScratchDir returns the fsys-relative path of the scratch directory.
func (s *FileStore) ScratchDir() string {
	return path.Join(s.dir, ScratchDirName)
}

// FileName returns the fsys-relative file name of the named database.
func (s *FileStore) FileName(name string) string {
	return path.Join(s.dir, name+fileExt)
}

// Open opens, creating if necessary, the named database. Opening a name
// that is already open returns the same handle.
func (s *FileStore) Open(ctx context.Context, name string) (*FileDB, error) {
	if !databaseNamePattern.MatchString(name) {
		return nil, oops.Code("STORE_INVALID_NAME").With("name", name).Errorf("invalid database name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.open[name]; ok {
		return db, nil
	}

	if err := s.fsys.MkdirAll(s.dir, 0o700); err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("name", name).Wrap(err)
	}

	file := s.fsys.Abs(s.FileName(name))
	sqlDB, err := sql.Open("sqlite", "file:"+file+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("name", name).Wrap(err)
	}
	// One connection keeps the file handle count predictable for Clear.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.ExecContext(ctx, schemaStatement); err != nil {
		_ = sqlDB.Close() //nolint:errcheck // schema error takes precedence
		return nil, oops.Code("STORE_OPEN_FAILED").With("name", name).Wrapf(err, "creating schema")
	}

	db := &FileDB{name: name, db: sqlDB, owner: s}
	s.open[name] = db
	s.logger.DebugContext(ctx, "database opened", "name", name)
	return db, nil
}

// Files lists the database names present in the default directory.
func (s *FileStore) Files() ([]string, error) {
	entries, err := s.fsys.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("STORE_LIST_FAILED").With("dir", s.dir).Wrap(err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), fileExt) {
			names = append(names, strings.TrimSuffix(e.Name(), fileExt))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Put stores value in the default database.
func (s *FileStore) Put(ctx context.Context, key, value string) error {
	db, err := s.Open(ctx, DefaultDatabaseName)
	if err != nil {
		return err
	}
	return db.Put(ctx, key, value)
}

// Get reads key from the default database.
func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	db, err := s.Open(ctx, DefaultDatabaseName)
	if err != nil {
		return "", false, err
	}
	return db.Get(ctx, key)
}

// Count returns the number of keys in the default database. It does not
// create the database file if it is absent.
func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	db, ok := s.open[DefaultDatabaseName]
	s.mu.Unlock()
	if ok {
		return db.Count(ctx)
	}

	if _, err := s.fsys.Stat(s.FileName(DefaultDatabaseName)); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	db, err := s.Open(ctx, DefaultDatabaseName)
	if err != nil {
		return 0, err
	}
	return db.Count(ctx)
}

// ClearTestState closes every open database and deletes every database
// file in the default directory, together with SQLite's journal sidecars
// and the scratch directory. Other entries are left alone. The directory's
// advisory lock is held throughout, so another process sharing the
// directory never observes a half-cleared state. Clearing an empty or
// missing directory succeeds.
func (s *FileStore) ClearTestState(ctx context.Context) error {
	// The lock file lives in the directory, so a removed directory is
	// recreated before locking.
	if err := s.fsys.MkdirAll(s.dir, 0o700); err != nil {
		return oops.Code("STORE_CLEAR_FAILED").With("dir", s.dir).Wrap(err)
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return oops.Code("STORE_LOCK_FAILED").With("lock", s.lock.Path()).Wrap(err)
	}
	if !locked {
		return oops.Code("STORE_LOCK_FAILED").With("lock", s.lock.Path()).Errorf("lock not acquired")
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release store lock", "error", err)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, db := range s.open {
		if err := db.db.Close(); err != nil {
			errs = append(errs, oops.With("name", name).Wrapf(err, "closing database"))
		}
		delete(s.open, name)
	}

	entries, err := s.fsys.ReadDir(s.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, oops.With("dir", s.dir).Wrapf(err, "listing default directory"))
	}
	removed := 0
	for _, e := range entries {
		if !isTestArtifact(e) {
			continue
		}
		if err := s.fsys.RemoveAll(path.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, oops.With("file", e.Name()).Wrapf(err, "removing file"))
			continue
		}
		removed++
	}

	if err := errors.Join(errs...); err != nil {
		return oops.Code("STORE_CLEAR_FAILED").With("dir", s.dir).Wrap(err)
	}
	s.logger.DebugContext(ctx, "test state cleared", "removed", removed)
	return nil
}

// sidecarSuffixes are the files SQLite keeps next to a database.
var sidecarSuffixes = []string{"", "-wal", "-shm", "-journal"}

// isTestArtifact reports whether e was created by the store: a database
// file, one of its sidecars, or the scratch directory.
func isTestArtifact(e fs.DirEntry) bool {
	if e.IsDir() {
		return e.Name() == ScratchDirName
	}
	for _, suffix := range sidecarSuffixes {
		base, ok := strings.CutSuffix(e.Name(), fileExt+suffix)
		if ok && databaseNamePattern.MatchString(base) {
			return true
		}
	}
	return false
}

// Close closes every open database. Files are left in place.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, db := range s.open {
		if err := db.db.Close(); err != nil {
			errs = append(errs, oops.With("name", name).Wrap(err))
		}
		delete(s.open, name)
	}
	return errors.Join(errs...)
}

// FileDB is one open SQLite database file.
type FileDB struct {
	name  string
	db    *sql.DB
	owner *FileStore
}

// Name returns the database name.
func (d *FileDB) Name() string { return d.name }

// Put stores value under key.
func (d *FileDB) Put(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO records (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return oops.With("operation", "put record").With("database", d.name).With("key", key).Wrap(err)
	}
	return nil
}

// Get returns the value stored under key.
func (d *FileDB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, oops.With("operation", "get record").With("database", d.name).With("key", key).Wrap(err)
	}
	return value, true, nil
}

// Count returns the number of records.
func (d *FileDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, oops.With("operation", "count records").With("database", d.name).Wrap(err)
	}
	return n, nil
}

// Close closes the database and forgets it in the owning store.
func (d *FileDB) Close() error {
	d.owner.mu.Lock()
	if d.owner.open[d.name] == d {
		delete(d.owner.open, d.name)
	}
	d.owner.mu.Unlock()

	if err := d.db.Close(); err != nil {
		return oops.With("database", d.name).Wrap(err)
	}
	return nil
}

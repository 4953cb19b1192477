// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package fsshim provides the filesystem capability handed to the harness
// and to child test modules: a read/write filesystem rooted at one directory.
// Names are slash-separated and relative to the root, as in io/fs.
package fsshim

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// FS is a writable filesystem rooted at a single directory.
type FS interface {
	fs.StatFS
	fs.ReadDirFS

	// Root returns the absolute path of the root directory.
	Root() string
	// Abs returns the absolute OS path of name.
	Abs(name string) string

	MkdirAll(name string, perm fs.FileMode) error
	WriteFile(name string, data []byte, perm fs.FileMode) error
	Remove(name string) error
	RemoveAll(name string) error
}

// Dir is an FS backed by an operating system directory.
type Dir struct {
	root string
	fsys fs.FS
}

var _ FS = (*Dir)(nil)

// New returns a Dir rooted at root, creating the directory with 0700
// permissions if it does not exist.
func New(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, oops.Code("FS_ROOT_INVALID").With("root", root).Wrap(err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, oops.Code("FS_ROOT_CREATE_FAILED").With("root", abs).Wrap(err)
	}
	return &Dir{root: abs, fsys: os.DirFS(abs)}, nil
}

// Root returns the absolute path of the root directory.
func (d *Dir) Root() string { return d.root }

// Abs returns the absolute OS path of name. It does not validate name.
func (d *Dir) Abs(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

// Open opens the named file for reading.
func (d *Dir) Open(name string) (fs.File, error) {
	f, err := d.fsys.Open(name)
	if err != nil {
		return nil, err //nolint:wrapcheck // fs.PathError is the io/fs contract
	}
	return f, nil
}

// Stat returns file information for name.
func (d *Dir) Stat(name string) (fs.FileInfo, error) {
	return fs.Stat(d.fsys, name) //nolint:wrapcheck // fs.PathError is the io/fs contract
}

// ReadDir lists the named directory, sorted by file name.
func (d *Dir) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(d.fsys, name) //nolint:wrapcheck // fs.PathError is the io/fs contract
}

// MkdirAll creates the named directory and any missing parents.
func (d *Dir) MkdirAll(name string, perm fs.FileMode) error {
	path, err := d.resolve("mkdir", name)
	if err != nil {
		return err
	}
	return os.MkdirAll(path, perm) //nolint:wrapcheck // fs.PathError is the io/fs contract
}

// WriteFile writes data to the named file, creating it if necessary.
func (d *Dir) WriteFile(name string, data []byte, perm fs.FileMode) error {
	path, err := d.resolve("write", name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, perm) //nolint:wrapcheck // fs.PathError is the io/fs contract
}

// Remove removes the named file or empty directory.
func (d *Dir) Remove(name string) error {
	path, err := d.resolve("remove", name)
	if err != nil {
		return err
	}
	return os.Remove(path) //nolint:wrapcheck // fs.PathError is the io/fs contract
}

// RemoveAll removes name and everything it contains. Removing the root
// itself is refused. A missing name is not an error.
func (d *Dir) RemoveAll(name string) error {
	path, err := d.resolve("removeall", name)
	if err != nil {
		return err
	}
	if name == "." {
		return &fs.PathError{Op: "removeall", Path: name, Err: fs.ErrPermission}
	}
	return os.RemoveAll(path) //nolint:wrapcheck // fs.PathError is the io/fs contract
}

// resolve validates name and maps it to an OS path under the root.
func (d *Dir) resolve(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return d.Abs(name), nil
}

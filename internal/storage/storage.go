// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package storage is the file-system access used by knowledge-base
// management. It wraps an afero.Fs rooted at the knowledge-base directory so
// the same code runs against the real disk or an in-memory fake.
//
// All paths are slash-separated and relative to the root; they cannot
// escape it.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FS is a rooted file system.
type FS struct {
	fs afero.Fs
}

// New wraps an existing afero.Fs.
func New(afs afero.Fs) *FS {
	return &FS{fs: afs}
}

// NewOS returns an FS rooted at dir on the real disk, creating dir if needed.
func NewOS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating root directory %s: %w", dir, err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewMemory returns an empty in-memory FS.
func NewMemory() *FS {
	return New(afero.NewMemMapFs())
}

// clean anchors p at the root so ".." cannot climb above it.
func clean(p string) string {
	return path.Join("/", p)
}

// IsNotExist reports whether err means the path does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Exists reports whether p exists.
func (f *FS) Exists(p string) (bool, error) {
	return afero.Exists(f.fs, clean(p))
}

// IsDir reports whether p exists and is a directory.
func (f *FS) IsDir(p string) (bool, error) {
	ok, err := afero.IsDir(f.fs, clean(p))
	if IsNotExist(err) {
		return false, nil
	}
	return ok, err
}

// ListDirs returns the sorted names of the immediate subdirectories of p.
func (f *FS) ListDirs(p string) ([]string, error) {
	entries, err := f.ReadDir(p)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ReadDir returns the entries of p sorted by name.
func (f *FS) ReadDir(p string) ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(f.fs, clean(p))
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// Glob returns the sorted base names of files in dir matching pattern.
func (f *FS) Glob(dir, pattern string) ([]string, error) {
	matches, err := afero.Glob(f.fs, path.Join(clean(dir), pattern))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := f.fs.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		names = append(names, path.Base(m))
	}
	sort.Strings(names)
	return names, nil
}

// Stat describes p.
func (f *FS) Stat(p string) (os.FileInfo, error) {
	return f.fs.Stat(clean(p))
}

// MkdirAll creates p and any missing parents.
func (f *FS) MkdirAll(p string) error {
	return f.fs.MkdirAll(clean(p), dirPerm)
}

// Remove deletes a single file or empty directory.
func (f *FS) Remove(p string) error {
	return f.fs.Remove(clean(p))
}

// RemoveAll deletes p and everything under it.
func (f *FS) RemoveAll(p string) error {
	return f.fs.RemoveAll(clean(p))
}

// ReadFile returns the contents of p.
func (f *FS) ReadFile(p string) ([]byte, error) {
	return afero.ReadFile(f.fs, clean(p))
}

// WriteFile replaces the contents of p.
func (f *FS) WriteFile(p string, data []byte) error {
	return afero.WriteFile(f.fs, clean(p), data, filePerm)
}

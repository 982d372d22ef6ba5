// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package kb implements the knowledge-base lifecycle: create, delete, cache
// clearing, config editing, document management, indexing, and querying.
//
// The file system is the only source of truth. Nothing is cached between
// calls; every operation re-reads the directory it touches.
package kb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/kbpanel/internal/runner"
	"github.com/pdiddy/kbpanel/internal/storage"
	"github.com/pdiddy/kbpanel/pkg/types"
)

// Runner launches the external tool.
type Runner interface {
	Run(ctx context.Context, args ...string) runner.Result
}

// Recorder stores one entry per tool invocation.
type Recorder interface {
	Record(ctx context.Context, run types.Run) (string, error)
}

// Manager performs knowledge-base actions over a rooted file system.
type Manager struct {
	fs     *storage.FS
	root   string
	run    Runner
	rec    Recorder
	logger *slog.Logger

	// mu guards flights. An entry exists exactly while indexing has a call
	// in flight for that knowledge base.
	mu       sync.Mutex
	flights  map[string]*indexFlight
	indexing singleflight.Group
}

// NewManager returns a Manager for the knowledge bases under root. fsys must
// be rooted at the same directory; root is the absolute path handed to the
// tool as --root. rec may be nil to skip history.
func NewManager(fsys *storage.FS, root string, run Runner, rec Recorder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		fs:      fsys,
		root:    root,
		run:     run,
		rec:     rec,
		logger:  logger,
		flights: map[string]*indexFlight{},
	}
}

// Path returns the absolute path of the named knowledge base.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.root, name)
}

// ValidateName reports whether name can be used as a single directory or
// file name under the root.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	case name != strings.TrimSpace(name):
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// List returns the sorted names of all knowledge bases.
func (m *Manager) List() ([]string, error) {
	names, err := m.fs.ListDirs("")
	if err != nil {
		return nil, fmt.Errorf("listing knowledge bases: %w", err)
	}
	return names, nil
}

// Exists reports whether the named knowledge base directory exists.
func (m *Manager) Exists(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	return m.fs.IsDir(name)
}

// require returns ErrNotFound unless name is an existing knowledge base.
func (m *Manager) require(name string) error {
	ok, err := m.Exists(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("knowledge base %q: %w", name, ErrNotFound)
	}
	return nil
}

// Delete removes the named knowledge base and everything in it.
func (m *Manager) Delete(name string) error {
	if err := m.require(name); err != nil {
		return err
	}
	if err := m.fs.RemoveAll(name); err != nil {
		return fmt.Errorf("deleting knowledge base %q: %w", name, err)
	}
	m.logger.Info("deleted knowledge base", "kb", name)
	return nil
}

// cacheExclusions survive ClearCache.
var cacheExclusions = map[string]bool{
	types.InputDir:     true,
	types.PromptsDir:   true,
	types.EnvFile:      true,
	types.SettingsFile: true,
}

// ClearResult lists what ClearCache removed and kept.
type ClearResult struct {
	Removed []string
	Kept    []string
}

// ClearCache removes every entry of the knowledge base except its input,
// prompts, .env, and settings.yaml. A failure on one entry does not stop
// the rest; all failures are returned joined.
func (m *Manager) ClearCache(name string) (ClearResult, error) {
	var res ClearResult
	if err := m.require(name); err != nil {
		return res, err
	}
	entries, err := m.fs.ReadDir(name)
	if err != nil {
		return res, fmt.Errorf("reading knowledge base %q: %w", name, err)
	}

	var errs []error
	for _, e := range entries {
		if cacheExclusions[e.Name()] {
			res.Kept = append(res.Kept, e.Name())
			continue
		}
		if err := m.fs.RemoveAll(path.Join(name, e.Name())); err != nil {
			m.logger.Error("clearing cache entry", "kb", name, "entry", e.Name(), "error", err)
			errs = append(errs, fmt.Errorf("deleting %s: %w", e.Name(), err))
			continue
		}
		res.Removed = append(res.Removed, e.Name())
	}
	m.logger.Info("cleared cache", "kb", name, "removed", len(res.Removed), "failed", len(errs))
	return res, errors.Join(errs...)
}

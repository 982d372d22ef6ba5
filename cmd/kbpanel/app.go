// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/pdiddy/kbpanel/internal/history"
	"github.com/pdiddy/kbpanel/internal/kb"
	"github.com/pdiddy/kbpanel/internal/runner"
	"github.com/pdiddy/kbpanel/internal/secrets"
	"github.com/pdiddy/kbpanel/internal/storage"
)

// openManager wires the knowledge-base manager to the real disk, the tool
// runner, and the run history. The caller must close the returned store.
func openManager() (*kb.Manager, *history.Store, error) {
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving root_dir: %w", err)
	}
	fsys, err := storage.NewOS(root)
	if err != nil {
		return nil, nil, err
	}

	store, err := history.Open(cfg.DataDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening run history: %w", err)
	}

	run := runner.New(cfg.Tool, secrets.Environ(loadedSecrets), logger)
	return kb.NewManager(fsys, root, run, store, logger), store, nil
}

// openHistory opens the run history alone.
func openHistory() (*history.Store, error) {
	store, err := history.Open(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}
	return store, nil
}

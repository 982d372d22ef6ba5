// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps an operator log of every external tool invocation
// in a local SQLite database. Knowledge-base state is never derived from it;
// the file system stays the source of truth.
package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/pdiddy/kbpanel/pkg/types"
)

const (
	dbFile            = "history.db"
	defaultRecentRuns = 50

	// timeLayout is fixed width so timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens or creates the history database at dataDir/history.db.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:      db,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			knowledge_base TEXT NOT NULL,
			kind TEXT NOT NULL,
			method TEXT,
			question TEXT,
			args TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			output TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_kb ON runs(knowledge_base)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) newID(t time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Record stores run, assigning its ID when empty, and returns the ID.
func (s *Store) Record(ctx context.Context, run types.Run) (string, error) {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}
	if run.ID == "" {
		id, err := s.newID(run.StartedAt)
		if err != nil {
			return "", fmt.Errorf("generating run id: %w", err)
		}
		run.ID = id
	}

	argsJSON, err := json.Marshal(run.Args)
	if err != nil {
		return "", fmt.Errorf("encoding args: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, knowledge_base, kind, method, question, args,
			exit_code, succeeded, output, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.KnowledgeBase, string(run.Kind), string(run.Method), run.Question,
		string(argsJSON), run.ExitCode, run.Succeeded, run.Output,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	s.logger.Debug("recorded run", "id", run.ID, "kb", run.KnowledgeBase, "kind", run.Kind)
	return run.ID, nil
}

// Filter narrows Recent and the exports.
type Filter struct {
	// KnowledgeBase restricts results to one knowledge base.
	KnowledgeBase string

	// Kind restricts results to one tool verb.
	Kind types.RunKind

	// Limit caps the result count. Zero uses the default (50); negative
	// means no limit.
	Limit int
}

// Recent returns runs newest first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]types.Run, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT id, knowledge_base, kind, method, question, args,
		exit_code, succeeded, output, started_at, finished_at
		FROM runs WHERE 1=1`)

	if f.KnowledgeBase != "" {
		qb.WriteString(` AND knowledge_base = ?`)
		args = append(args, f.KnowledgeBase)
	}
	if f.Kind != "" {
		qb.WriteString(` AND kind = ?`)
		args = append(args, string(f.Kind))
	}
	qb.WriteString(` ORDER BY started_at DESC, id DESC`)

	limit := f.Limit
	if limit == 0 {
		limit = defaultRecentRuns
	}
	if limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one run by ID.
func (s *Store) Get(ctx context.Context, id string) (types.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, knowledge_base, kind, method, question, args,
			exit_code, succeeded, output, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (types.Run, error) {
	var (
		run               types.Run
		kind              string
		method, question  sql.NullString
		argsJSON          string
		started, finished string
	)
	if err := sc.Scan(&run.ID, &run.KnowledgeBase, &kind, &method, &question, &argsJSON,
		&run.ExitCode, &run.Succeeded, &run.Output, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scanning run: %w", err)
	}
	run.Kind = types.RunKind(kind)
	run.Method = types.QueryMethod(method.String)
	run.Question = question.String
	if err := json.Unmarshal([]byte(argsJSON), &run.Args); err != nil {
		return run, fmt.Errorf("decoding args of run %s: %w", run.ID, err)
	}
	run.StartedAt, _ = time.Parse(timeLayout, started)
	run.FinishedAt, _ = time.Parse(timeLayout, finished)
	return run, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}

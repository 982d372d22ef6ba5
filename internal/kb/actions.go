// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kb

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/pdiddy/kbpanel/internal/markers"
	"github.com/pdiddy/kbpanel/internal/runner"
	"github.com/pdiddy/kbpanel/pkg/types"
)

// Outcome describes a successful init or index invocation.
type Outcome struct {
	KnowledgeBase string
	RunID         string
	Output        string
	Duration      time.Duration

	// Cleared is set when Index cleared the cache first.
	Cleared *ClearResult

	// Shared is set when the result came from an index run started by a
	// concurrent caller.
	Shared bool
}

// Create makes a new knowledge base directory with an input folder and
// initializes it with the tool. An existing name is rejected before any
// invocation. When initialization fails the directory is left in place.
func (m *Manager) Create(ctx context.Context, name string) (Outcome, error) {
	if err := ValidateName(name); err != nil {
		return Outcome{}, err
	}
	ok, err := m.fs.Exists(name)
	if err != nil {
		return Outcome{}, fmt.Errorf("checking knowledge base %q: %w", name, err)
	}
	if ok {
		return Outcome{}, fmt.Errorf("knowledge base %q: %w", name, ErrExists)
	}
	if err := m.fs.MkdirAll(path.Join(name, types.InputDir)); err != nil {
		return Outcome{}, fmt.Errorf("creating knowledge base %q: %w", name, err)
	}

	kbPath := m.Path(name)
	res := m.run.Run(ctx, "init", "--root", kbPath)
	succeeded := markers.Succeeded(types.RunInit, res.Output, kbPath, "")
	id := m.record(ctx, types.Run{KnowledgeBase: name, Kind: types.RunInit}, res, succeeded)

	if !succeeded {
		m.logger.Warn("initialization failed", "kb", name, "run", id)
		return Outcome{}, &ActionError{Op: "init", KnowledgeBase: name, Output: res.Output, RunID: id, Err: ErrInitFailed}
	}
	m.logger.Info("created knowledge base", "kb", name, "run", id)
	return Outcome{KnowledgeBase: name, RunID: id, Output: res.Output, Duration: res.Duration()}, nil
}

// indexFlight is an index run shared by concurrent callers. Its context is
// detached from any single request and is cancelled once every waiting
// caller has gone away.
type indexFlight struct {
	ctx        context.Context
	cancel     context.CancelFunc
	clearCache bool
	waiters    int
}

// Index runs the tool's index verb on the knowledge base, clearing the cache
// first when clearCache is set. Concurrent calls for the same knowledge base
// share one invocation, which keeps running while at least one caller is
// still waiting for it. A cache-clearing call made while a plain run is in
// progress is rejected with ErrIndexBusy.
func (m *Manager) Index(ctx context.Context, name string, clearCache bool) (Outcome, error) {
	if err := m.require(name); err != nil {
		return Outcome{}, err
	}

	m.mu.Lock()
	fl := m.flights[name]
	if fl != nil && clearCache && !fl.clearCache {
		m.mu.Unlock()
		return Outcome{KnowledgeBase: name}, fmt.Errorf("index %s: %w", name, ErrIndexBusy)
	}
	if fl == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &indexFlight{ctx: fctx, cancel: cancel, clearCache: clearCache}
		m.flights[name] = fl
	}
	fl.waiters++
	ch := m.indexing.DoChan(name, func() (any, error) {
		defer m.finishIndex(name, fl)
		return m.index(fl.ctx, name, fl.clearCache)
	})
	m.mu.Unlock()

	select {
	case r := <-ch:
		out, _ := r.Val.(Outcome)
		out.Shared = r.Shared
		return out, r.Err
	case <-ctx.Done():
		m.leaveIndex(name, fl)
		return Outcome{KnowledgeBase: name}, ctx.Err()
	}
}

// finishIndex retires fl once its run has returned.
func (m *Manager) finishIndex(name string, fl *indexFlight) {
	m.mu.Lock()
	if m.flights[name] == fl {
		delete(m.flights, name)
		m.indexing.Forget(name)
	}
	m.mu.Unlock()
	fl.cancel()
}

// leaveIndex drops one waiter from fl and cancels the run when none are left.
func (m *Manager) leaveIndex(name string, fl *indexFlight) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	if m.flights[name] == fl {
		delete(m.flights, name)
		m.indexing.Forget(name)
	}
	fl.cancel()
	m.logger.Info("index abandoned by every caller", "kb", name)
}

func (m *Manager) index(ctx context.Context, name string, clearCache bool) (Outcome, error) {
	out := Outcome{KnowledgeBase: name}
	if clearCache {
		cleared, err := m.ClearCache(name)
		out.Cleared = &cleared
		if err != nil {
			return out, fmt.Errorf("clearing cache before indexing: %w", err)
		}
	}

	res := m.run.Run(ctx, "index", "--root", m.Path(name))
	succeeded := markers.Succeeded(types.RunIndex, res.Output, "", "")
	out.RunID = m.record(ctx, types.Run{KnowledgeBase: name, Kind: types.RunIndex}, res, succeeded)
	out.Output = res.Output
	out.Duration = res.Duration()

	if !succeeded {
		m.logger.Warn("indexing failed", "kb", name, "run", out.RunID)
		return out, &ActionError{Op: "index", KnowledgeBase: name, Output: res.Output, RunID: out.RunID, Err: ErrIndexFailed}
	}
	m.logger.Info("indexed knowledge base", "kb", name, "run", out.RunID, "duration", out.Duration)
	return out, nil
}

// Query asks the tool a question against the knowledge base and returns the
// answer text that follows the method's response marker.
func (m *Manager) Query(ctx context.Context, name, method, question string) (types.QueryAnswer, error) {
	if err := m.require(name); err != nil {
		return types.QueryAnswer{}, err
	}
	qm, err := types.ParseQueryMethod(method)
	if err != nil {
		return types.QueryAnswer{}, err
	}
	if strings.TrimSpace(question) == "" {
		return types.QueryAnswer{}, ErrEmptyQuestion
	}

	res := m.run.Run(ctx, "query", "--root", m.Path(name), "--method", string(qm), "--query", question)
	answer, succeeded := markers.Answer(res.Output, string(qm))
	id := m.record(ctx, types.Run{KnowledgeBase: name, Kind: types.RunQuery, Method: qm, Question: question}, res, succeeded)

	if !succeeded {
		m.logger.Warn("no response in query output", "kb", name, "method", qm, "run", id)
		return types.QueryAnswer{}, &ActionError{Op: "query", KnowledgeBase: name, Output: res.Output, RunID: id, Err: ErrNoResponse}
	}
	return types.QueryAnswer{
		KnowledgeBase: name,
		Method:        qm,
		Question:      question,
		Answer:        answer,
		RunID:         id,
	}, nil
}

// record stores the invocation in history. Failures are logged and never
// affect the action's result.
func (m *Manager) record(ctx context.Context, run types.Run, res runner.Result, succeeded bool) string {
	if m.rec == nil {
		return ""
	}
	run.Args = res.Args
	run.ExitCode = res.ExitCode
	run.Succeeded = succeeded
	run.Output = res.Output
	run.StartedAt = res.StartedAt
	run.FinishedAt = res.FinishedAt

	id, err := m.rec.Record(context.WithoutCancel(ctx), run)
	if err != nil {
		m.logger.Error("recording run", "kb", run.KnowledgeBase, "kind", run.Kind, "error", err)
		return ""
	}
	return id
}

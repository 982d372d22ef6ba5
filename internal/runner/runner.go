// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runner launches the external GraphRAG tool and captures its
// combined stdout and stderr as text.
//
// A run never returns a Go error to the caller. Failures (non-zero exit,
// launch failure, timeout, cancellation) are reported by prefixing the
// captured text with ErrorPrefix, so callers that only scan the text for
// markers keep working, and by setting Result.Err for callers that want to
// branch on it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pdiddy/kbpanel/pkg/types"
)

// ErrorPrefix marks the output of a failed invocation.
const ErrorPrefix = "Error: "

// waitDelay is how long a killed process may hold its output pipes open.
const waitDelay = 5 * time.Second

// Result is the outcome of one invocation.
type Result struct {
	// Args are the tool arguments (without interpreter and module).
	Args []string

	// Dir is the working directory the process ran in.
	Dir string

	// Output is the captured text, prefixed with ErrorPrefix on failure.
	Output string

	// Raw is the captured text exactly as the process wrote it.
	Raw string

	// ExitCode is the process exit status, or -1 if it never started or
	// was killed by a signal.
	ExitCode int

	// Err is nil on a zero exit status.
	Err error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether the process failed to run to a zero exit.
func (r Result) Failed() bool { return r.Err != nil }

// Duration returns the wall time of the invocation.
func (r Result) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// executor abstracts process execution for testing.
type executor interface {
	// CombinedOutput runs name with args in dir, with env appended to the
	// parent environment, and returns merged stdout+stderr and the exit code.
	CombinedOutput(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, int, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) CombinedOutput(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.WaitDelay = waitDelay

	out, err := cmd.CombinedOutput()
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	return out, code, err
}

// Runner invokes `<interpreter> -m <module> <args...>` synchronously.
type Runner struct {
	interpreter string
	module      string
	workDir     string
	timeout     time.Duration
	env         []string
	exec        executor
	logger      *slog.Logger
}

// New creates a Runner from cfg. env holds extra KEY=value pairs appended to
// the child environment. A nil logger discards log output.
func New(cfg types.ToolConfig, env []string, logger *slog.Logger) *Runner {
	return newRunner(cfg, env, logger, osExecutor{})
}

func newRunner(cfg types.ToolConfig, env []string, logger *slog.Logger, exec executor) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	interpreter := cfg.Interpreter
	if interpreter == "" {
		interpreter = "python"
	}
	module := cfg.Module
	if module == "" {
		module = "graphrag"
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = "."
	}
	return &Runner{
		interpreter: interpreter,
		module:      module,
		workDir:     workDir,
		timeout:     cfg.Timeout,
		env:         env,
		exec:        exec,
		logger:      logger,
	}
}

// CommandLine returns the full argument vector for args, for display.
func (r *Runner) CommandLine(args ...string) []string {
	argv := make([]string, 0, len(args)+3)
	argv = append(argv, r.interpreter, "-m", r.module)
	return append(argv, args...)
}

// Run executes the tool with args and blocks until it exits, the configured
// timeout elapses, or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, args ...string) Result {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	argv := r.CommandLine(args...)
	res := Result{
		Args:      append([]string(nil), args...),
		Dir:       r.workDir,
		StartedAt: time.Now(),
	}

	r.logger.Info("running tool", "command", strings.Join(argv, " "), "dir", r.workDir)

	out, code, err := r.exec.CombinedOutput(ctx, r.workDir, r.env, argv[0], argv[1:]...)
	res.FinishedAt = time.Now()
	res.Raw = string(out)
	res.ExitCode = code

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		res.Err = fmt.Errorf("running %s: %w", strings.Join(argv, " "), err)
		detail := res.Raw
		if strings.TrimSpace(detail) == "" {
			detail = res.Err.Error()
		}
		res.Output = ErrorPrefix + detail
		r.logger.Warn("tool failed",
			"command", strings.Join(argv, " "),
			"exit_code", code,
			"duration", res.Duration(),
			"err", err)
	} else {
		res.Output = res.Raw
		r.logger.Info("tool finished",
			"command", strings.Join(argv, " "),
			"exit_code", code,
			"duration", res.Duration(),
			"output_bytes", len(out))
	}
	r.logger.Debug("tool output", "output", res.Raw)

	return res
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/kbpanel/pkg/types"
)

// fakeTool is a stand-in tool module run by the real interpreter.
const fakeTool = `import os, sys, time
verb = sys.argv[1]
if verb == "fail":
    print("out-line", flush=True)
    print("err-line", file=sys.stderr, flush=True)
    sys.exit(3)
if verb == "env":
    print(os.environ.get("KBPANEL_TEST_KEY", "unset"))
    sys.exit(0)
if verb == "sleep":
    time.sleep(30)
print("All workflows completed successfully.")
`

// pythonRunner builds a Runner that executes fakeTool with the system
// interpreter, skipping the test when none is installed.
func pythonRunner(t *testing.T, env []string, timeout time.Duration) *Runner {
	t.Helper()
	py, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not installed")
	}
	dir := t.TempDir()
	pkg := filepath.Join(dir, "faketool")
	if err := os.Mkdir(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkg, "__main__.py"), []byte(fakeTool), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkg, "__init__.py"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := types.ToolConfig{Interpreter: py, Module: "faketool", WorkDir: dir, Timeout: timeout}
	return New(cfg, env, nil)
}

func TestOSExecutorSuccess(t *testing.T) {
	r := pythonRunner(t, nil, 0)
	res := r.Run(context.Background(), "index", "--root", "/kb/a")
	if res.Err != nil {
		t.Fatalf("Err = %v, output %q", res.Err, res.Output)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Output != "All workflows completed successfully.\n" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestOSExecutorMergesOutputOnFailure(t *testing.T) {
	r := pythonRunner(t, nil, 0)
	res := r.Run(context.Background(), "fail")
	if res.Err == nil {
		t.Fatal("expected Err for non-zero exit")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if want := "Error: out-line\nerr-line\n"; res.Output != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}
	if res.Raw != "out-line\nerr-line\n" {
		t.Errorf("Raw = %q", res.Raw)
	}
}

func TestOSExecutorPassesEnv(t *testing.T) {
	r := pythonRunner(t, []string{"KBPANEL_TEST_KEY=secret"}, 0)
	res := r.Run(context.Background(), "env")
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if strings.TrimSpace(res.Output) != "secret" {
		t.Errorf("Output = %q, want secret", res.Output)
	}
}

func TestOSExecutorTimeoutKillsProcess(t *testing.T) {
	r := pythonRunner(t, nil, 200*time.Millisecond)
	start := time.Now()
	res := r.Run(context.Background(), "sleep")
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("run took %v after timeout", elapsed)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want DeadlineExceeded", res.Err)
	}
	if !strings.HasPrefix(res.Output, ErrorPrefix) {
		t.Errorf("Output = %q, want %q prefix", res.Output, ErrorPrefix)
	}
}

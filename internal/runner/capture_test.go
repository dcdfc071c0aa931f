package runner

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/bebsworthy/logwatch/internal/errors"
	"github.com/bebsworthy/logwatch/internal/sources"
)

// syncBuffer guards a bytes.Buffer shared between the exec copier and the test
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func testDescriptor(dir string) sources.Descriptor {
	return sources.Descriptor{
		ID:             "nodejs",
		File:           filepath.Join(dir, "node.log"),
		Description:    "Node.js application",
		CaptureCommand: "echo registered",
	}
}

func fastConfig() Config {
	return Config{
		Shell:        "sh",
		MaxRestarts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}
}

func TestNewCaptureRunner_RegisteredCommand(t *testing.T) {
	desc := testDescriptor("/logs")

	r, err := NewCaptureRunner(desc, afero.NewMemMapFs(), nil, Config{}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := r.Command()
	want := []string{"/bin/sh", "-c", "echo registered"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected argv[%d] %q, got %q", i, want[i], got[i])
		}
	}
	if r.AppendsOutput() {
		t.Error("Registered commands write the artifact themselves")
	}
}

func TestNewCaptureRunner_ExplicitCommand(t *testing.T) {
	command := []string{"npm", "run", "dev"}

	r, err := NewCaptureRunner(testDescriptor("/logs"), afero.NewMemMapFs(), nil, Config{}, command)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	command[0] = "changed"
	if r.Command()[0] != "npm" {
		t.Error("Expected runner to keep its own copy of the command")
	}
	if !r.AppendsOutput() {
		t.Error("Expected explicit commands to be appended to the artifact")
	}
}

func TestNewCaptureRunner_NoCommand(t *testing.T) {
	desc := testDescriptor("/logs")
	desc.CaptureCommand = "  "

	_, err := NewCaptureRunner(desc, afero.NewMemMapFs(), nil, Config{}, nil)
	if !errors.IsCode(err, errors.CodeInvalidArgument) {
		t.Errorf("Expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestRun_AppendsOutput(t *testing.T) {
	requireShell(t)

	fs := afero.NewMemMapFs()
	desc := testDescriptor("/logs")
	if err := afero.WriteFile(fs, desc.File, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}

	echo := &syncBuffer{}
	cfg := fastConfig()
	cfg.Echo = echo

	r, err := NewCaptureRunner(desc, fs, nil, cfg, []string{"sh", "-c", "echo one; echo two >&2"})
	if err != nil {
		t.Fatal(err)
	}

	var started, exited int
	r.OnStart = func(pid int) { started++ }
	r.OnExit = func(code int) { exited++ }

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	content, err := afero.ReadFile(fs, desc.File)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "old\none\ntwo\n" {
		t.Errorf("Unexpected artifact content %q", content)
	}
	if echo.String() != "one\ntwo\n" {
		t.Errorf("Unexpected echo %q", echo.String())
	}
	if started != 1 || exited != 1 {
		t.Errorf("Expected one start and one exit, got %d and %d", started, exited)
	}
	if code := r.ExitCode(); code == nil || *code != 0 {
		t.Errorf("Expected exit code 0, got %v", code)
	}
	if r.PID() == 0 {
		t.Error("Expected PID to be recorded")
	}
}

func TestRun_RegisteredCommandWritesItself(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	desc := testDescriptor(dir)
	desc.CaptureCommand = "printf 'hi\\n' >> " + desc.File

	echo := &syncBuffer{}
	cfg := fastConfig()
	cfg.Echo = echo

	r, err := NewCaptureRunner(desc, afero.NewOsFs(), nil, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	content, err := os.ReadFile(desc.File)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "hi\n" {
		t.Errorf("Expected the command's own output only, got %q", content)
	}
	if echo.String() != "" {
		t.Errorf("Expected nothing echoed, got %q", echo.String())
	}
}

func TestRun_RestartOnFailure(t *testing.T) {
	requireShell(t)

	fs := afero.NewMemMapFs()
	desc := testDescriptor("/logs")
	cfg := fastConfig()
	cfg.Restart = true

	r, err := NewCaptureRunner(desc, fs, nil, cfg, []string{"sh", "-c", "echo run; exit 3"})
	if err != nil {
		t.Fatal(err)
	}

	err = r.Run(context.Background())
	if !errors.IsCode(err, errors.CodeExecutionFailure) {
		t.Fatalf("Expected EXECUTION_FAILED, got %v", err)
	}

	if r.Restarts() != 2 {
		t.Errorf("Expected 2 restarts, got %d", r.Restarts())
	}
	if code := r.ExitCode(); code == nil || *code != 3 {
		t.Errorf("Expected exit code 3, got %v", code)
	}

	content, _ := afero.ReadFile(fs, desc.File)
	if string(content) != "run\nrun\nrun\n" {
		t.Errorf("Expected three runs, got %q", content)
	}
}

func TestRun_NoRestartByDefault(t *testing.T) {
	requireShell(t)

	fs := afero.NewMemMapFs()
	desc := testDescriptor("/logs")

	r, err := NewCaptureRunner(desc, fs, nil, fastConfig(), []string{"sh", "-c", "echo run; exit 1"})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Expected failure")
	}
	if r.Restarts() != 0 {
		t.Errorf("Expected no restarts, got %d", r.Restarts())
	}

	content, _ := afero.ReadFile(fs, desc.File)
	if string(content) != "run\n" {
		t.Errorf("Expected one run, got %q", content)
	}
}

func TestRun_StartFailureIsNotRetried(t *testing.T) {
	cfg := fastConfig()
	cfg.Restart = true

	r, err := NewCaptureRunner(testDescriptor("/logs"), afero.NewMemMapFs(), nil, cfg, []string{"/nonexistent/logwatch-capture"})
	if err != nil {
		t.Fatal(err)
	}

	err = r.Run(context.Background())
	if !errors.IsCode(err, errors.CodeExecutionFailure) {
		t.Errorf("Expected EXECUTION_FAILED, got %v", err)
	}
	if r.Restarts() != 0 {
		t.Errorf("Expected no restarts, got %d", r.Restarts())
	}
}

func TestRun_Cancel(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	cfg := fastConfig()
	cfg.Restart = true

	r, err := NewCaptureRunner(testDescriptor("/logs"), afero.NewMemMapFs(), nil, cfg, []string{"sleep", "30"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.OnStart = func(int) { cancel() }

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after cancellation, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if r.Restarts() != 0 {
		t.Errorf("Expected no restarts after cancellation, got %d", r.Restarts())
	}
}

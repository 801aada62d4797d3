package overseer

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"
)

const helperEnv = "GO_WANT_OVERSEER_HELPER"

type workerFunc func(ctx context.Context) error

func (f workerFunc) Start(ctx context.Context) error { return f(ctx) }

func init() {
	RegisterWorkerClass("test-sleep", func(options map[string]string) (Worker, error) {
		seconds := 0
		if raw := options["seconds"]; raw != "" {
			seconds, _ = strconv.Atoi(raw)
		}
		return workerFunc(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(seconds) * time.Second):
			}
			return nil
		}), nil
	})
	RegisterWorkerClass("test-fail", func(map[string]string) (Worker, error) {
		return workerFunc(func(context.Context) error {
			return errors.New("boom")
		}), nil
	})
}

// TestHelperProcess is a no-op under a normal `go test` run (helperEnv is
// unset); it only does real work when re-exec'd as a worker child by
// TestWorkerHandlerSpawnRunsRealChild below, which points os.Args at this
// same test binary so WorkerHandler.Spawn's real exec.Command path has a
// real process to launch.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	if IsWorkerChild() {
		os.Exit(RunWorker())
	}
	os.Exit(3)
}

var argsMu sync.Mutex

// withHelperArgs points os.Args at this test binary re-invoked with
// -test.run=TestHelperProcess, so WorkerHandler.Spawn's real
// exec.Command(os.Args[0], os.Args[1:]...) path launches a genuine child
// that runs TestHelperProcess instead of the full test suite.
func withHelperArgs(t *testing.T, fn func()) {
	t.Helper()
	argsMu.Lock()
	defer argsMu.Unlock()
	orig := os.Args
	os.Args = []string{orig[0], "-test.run=TestHelperProcess", "--"}
	defer func() { os.Args = orig }()
	fn()
}

func TestWorkerHandlerSpawnRunsRealChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fork/exec not available on windows")
	}
	h, err := NewWorkerHandler("test", "test-sleep", nil)
	if err != nil {
		t.Fatalf("NewWorkerHandler: %v", err)
	}
	h.EnvPreamble = []string{helperEnv + "=1"}

	var pid int
	withHelperArgs(t, func() {
		pid, err = h.Spawn(map[string]string{"seconds": "5"})
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer syscall.Kill(pid, syscall.SIGKILL)

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		t.Fatalf("signaling spawned child: %v", err)
	}
	exited, err := waitPID(pid, true)
	if err != nil {
		t.Fatalf("waitPID: %v", err)
	}
	if !exited {
		t.Fatal("expected child to have exited")
	}
}

func TestWorkerHandlerSpawnUnknownClass(t *testing.T) {
	h, err := NewWorkerHandler("test", "no-such-class", nil)
	if err != nil {
		t.Fatalf("NewWorkerHandler: %v", err)
	}
	if _, err := h.Spawn(nil); !errors.Is(err, ErrUnknownWorkerClass) {
		t.Fatalf("expected ErrUnknownWorkerClass, got %v", err)
	}
}

func TestSignalForUnknownAction(t *testing.T) {
	h, err := NewWorkerHandler("test", "test-sleep", nil)
	if err != nil {
		t.Fatalf("NewWorkerHandler: %v", err)
	}
	if _, err := h.SignalFor("does_not_exist"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestNewWorkerHandlerRejectsBadSignal(t *testing.T) {
	_, err := NewWorkerHandler("test", "test-sleep", map[string]string{"stop": "NOTASIGNAL"})
	if !errors.Is(err, ErrUnknownSignal) {
		t.Fatalf("expected ErrUnknownSignal, got %v", err)
	}
}

func TestHasAction(t *testing.T) {
	h, err := NewWorkerHandler("test", "test-sleep", nil)
	if err != nil {
		t.Fatalf("NewWorkerHandler: %v", err)
	}
	if !h.HasAction(ActionStopForcefully) {
		t.Fatal("expected default action signals to include stop_forcefully")
	}
	if h.HasAction("nope") {
		t.Fatal("did not expect unconfigured action to be present")
	}
}

func TestFilterEnv(t *testing.T) {
	in := []string{"KEEP=1", "DROP=2", "OTHER=3"}
	out := filterEnv(in, "DROP")
	want := []string{"KEEP=1", "OTHER=3"}
	if len(out) != len(want) {
		t.Fatalf("filterEnv = %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("filterEnv = %v, want %v", out, want)
		}
	}
}

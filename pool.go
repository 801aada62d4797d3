package overseer

import (
	"fmt"
	"sync"
	"syscall"
)

// Pool holds an ordered sequence of live child PIDs, a target size, the
// shared per-worker options, and the WorkerHandler used to spawn and kill
// them. It has no signal-handling of its own; SignalHandler drives it by
// calling Invoke with action names.
type Pool struct {
	// Name identifies the pool in logs.
	Name string

	// Handler spawns workers and resolves action names to OS signals.
	Handler *WorkerHandler

	// Size is the target live-worker count.
	Size int

	// Options is passed to every spawned worker, unmodified.
	Options map[string]string

	mu          sync.Mutex
	workers     []int // insertion-ordered PIDs, newest at the tail
	pendingReap []int // killed PIDs not yet confirmed reaped by wait4

	// killFunc lets tests observe/stub signal delivery without sending
	// real signals. Defaults to syscall.Kill.
	killFunc func(pid int, sig syscall.Signal) error
}

// NewPool constructs a Pool. size must be >= 0.
func NewPool(name string, handler *WorkerHandler, size int, options map[string]string) *Pool {
	return &Pool{
		Name:    name,
		Handler: handler,
		Size:    size,
		Options: options,
	}
}

// SetSize updates the target live-worker count under the pool's lock. Safe
// to call concurrently with Update/MaintainWorkerCount (e.g. from a
// config-file watcher running alongside the SignalHandler's main loop);
// the next reconciliation converges to the new value.
func (p *Pool) SetSize(n int) {
	p.mu.Lock()
	p.Size = n
	p.mu.Unlock()
}

func (p *Pool) targetSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Size
}

// Workers returns a snapshot copy of the currently tracked PIDs, oldest
// first.
func (p *Pool) Workers() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.workers))
	copy(out, p.workers)
	return out
}

// Len reports the number of PIDs currently tracked.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// SpawnWorker delegates to Handler.Spawn and appends the resulting PID to
// workers.
func (p *Pool) SpawnWorker() (int, error) {
	pid, err := p.Handler.Spawn(p.Options)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.workers = append(p.workers, pid)
	p.mu.Unlock()
	return pid, nil
}

// SpawnWorkers calls SpawnWorker n times, stopping at the first error.
func (p *Pool) SpawnWorkers(n int) error {
	for i := 0; i < n; i++ {
		if _, err := p.SpawnWorker(); err != nil {
			return err
		}
	}
	return nil
}

// KillWorker resolves action to a signal via Handler, sends it to pid, and
// moves pid from workers to pendingReap immediately (optimistic removal
// from the live count — the kernel hasn't necessarily delivered or acted
// on the signal yet). pendingReap keeps the PID around until
// CleanupDeadWorkers actually observes it exit, so it gets wait4'd instead
// of turning into a zombie. A signal-send failure because the process has
// already exited is treated as success.
func (p *Pool) KillWorker(pid int, action string) error {
	sig, err := p.Handler.SignalFor(action)
	if err != nil {
		return err
	}
	kill := p.killFunc
	if kill == nil {
		kill = syscall.Kill
	}
	if err := kill(pid, sig); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("overseer: signaling pid %d with %s: %w", pid, action, err)
	}
	p.mu.Lock()
	p.removeWorkerLocked(pid)
	p.pendingReap = append(p.pendingReap, pid)
	p.mu.Unlock()
	return nil
}

// KillWorkers kills the n most-recently-spawned workers, tail-first, so
// that any remaining workers are the oldest (head-aligned) ones.
func (p *Pool) KillWorkers(n int, action string) error {
	p.mu.Lock()
	if n > len(p.workers) {
		n = len(p.workers)
	}
	targets := make([]int, n)
	for i := 0; i < n; i++ {
		targets[i] = p.workers[len(p.workers)-1-i]
	}
	p.mu.Unlock()

	for _, pid := range targets {
		if err := p.KillWorker(pid, action); err != nil {
			return err
		}
	}
	return nil
}

// CleanupDeadWorkers checks every currently tracked PID for exit, covering
// both workers still believed live (which may have exited on their own)
// and workers already sent a kill signal but not yet confirmed reaped
// (pendingReap). In blocking mode it waits for each to exit; otherwise it
// probes without blocking. A PID already reaped elsewhere (ECHILD) is
// treated the same as one reaped here. Exited/reaped PIDs are dropped from
// whichever of the two sets they were in.
func (p *Pool) CleanupDeadWorkers(blocking bool) error {
	p.mu.Lock()
	targets := make([]int, 0, len(p.workers)+len(p.pendingReap))
	targets = append(targets, p.workers...)
	targets = append(targets, p.pendingReap...)
	p.mu.Unlock()

	for _, pid := range targets {
		exited, err := waitPID(pid, blocking)
		if err != nil {
			return fmt.Errorf("overseer: waiting for pid %d: %w", pid, err)
		}
		if exited {
			p.mu.Lock()
			p.removeWorkerLocked(pid)
			p.removePendingReapLocked(pid)
			p.mu.Unlock()
		}
	}
	return nil
}

// waitPID reports whether pid has exited (and been reaped). In blocking
// mode it always returns true once it returns (having waited), except when
// the kernel reports ECHILD (already reaped by something else), which is
// folded into the same "exited" result.
func waitPID(pid int, blocking bool) (bool, error) {
	var options int
	if !blocking {
		options = syscall.WNOHANG
	}
	for {
		var ws syscall.WaitStatus
		got, err := syscall.Wait4(pid, &ws, options, nil)
		switch {
		case err == syscall.EINTR:
			continue
		case err == syscall.ECHILD:
			// No longer a child of this process: already reaped.
			return true, nil
		case err != nil:
			return false, err
		case !blocking && got == 0:
			// Still running.
			return false, nil
		default:
			return true, nil
		}
	}
}

func (p *Pool) removeWorkerLocked(pid int) {
	for i, existing := range p.workers {
		if existing == pid {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			return
		}
	}
}

func (p *Pool) removePendingReapLocked(pid int) {
	for i, existing := range p.pendingReap {
		if existing == pid {
			p.pendingReap = append(p.pendingReap[:i], p.pendingReap[i+1:]...)
			return
		}
	}
}

// MaintainWorkerCount converges |workers| to Size: killing the excess
// (tail-first, using action) if over, spawning the shortfall if under.
func (p *Pool) MaintainWorkerCount(action string) error {
	n := p.Len()
	size := p.targetSize()
	switch {
	case n > size:
		return p.KillWorkers(n-size, action)
	case n < size:
		return p.SpawnWorkers(size - n)
	default:
		return nil
	}
}

// Start converges to Size by spawning. It returns once |workers| == Size.
func (p *Pool) Start() error {
	n := p.Len()
	size := p.targetSize()
	if n < size {
		return p.SpawnWorkers(size - n)
	}
	return nil
}

// Stop kills every live worker with ActionStopForcefully, blocks until
// each is reaped, and returns once workers is empty.
func (p *Pool) Stop() error {
	if err := p.KillWorkers(p.Len(), ActionStopForcefully); err != nil {
		return err
	}
	return p.CleanupDeadWorkers(true)
}

// Wait blocks until every currently-live worker has exited, reaping each
// as it does.
func (p *Pool) Wait() error {
	return p.CleanupDeadWorkers(true)
}

// Update reaps any dead workers non-blockingly, then spawns replacements
// so that |workers| == Size, using ActionStopGracefully as the
// reconciling action for any excess (the steady-state path driven by the
// SignalHandler's main loop).
func (p *Pool) Update() error {
	if err := p.CleanupDeadWorkers(false); err != nil {
		return err
	}
	return p.MaintainWorkerCount(ActionStopGracefully)
}

// SupportsAction implements Target: any action with a configured signal is
// supported, plus the built-in "terminate" action (see Invoke).
func (p *Pool) SupportsAction(action string) bool {
	if action == "terminate" {
		return true
	}
	return p.Handler.HasAction(action)
}

// Invoke implements Target. For any action named in Handler.ActionSignals,
// it recycles the pool: every currently tracked worker is killed with that
// action, and the next Update call (run by the main loop right after)
// respawns replacements — a rolling restart triggered by, e.g., SIGHUP.
// The built-in "terminate" action instead performs a full Stop with no
// replacement and returns OutcomeBreak, the main loop's documented
// extension point for ending the process.
func (p *Pool) Invoke(action string) (Outcome, error) {
	if action == "terminate" {
		if err := p.Stop(); err != nil {
			return OutcomeContinue, err
		}
		return OutcomeBreak, nil
	}
	if err := p.KillWorkers(p.Len(), action); err != nil {
		return OutcomeContinue, err
	}
	return OutcomeContinue, nil
}

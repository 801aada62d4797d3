package overseer

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
)

// Outcome is returned by Target.Invoke. OutcomeBreak is the sentinel that
// tells the main loop to exit after the next Update call; no canonical
// action in this package's vocabulary returns it except Pool's built-in
// "terminate" action.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeBreak
)

// Target is implemented by anything the SignalHandler dispatches actions
// onto — in this package, *Pool. SupportsAction is checked for every
// action named in a SignalMap at Start, so misconfiguration fails fast
// before the main loop ever runs.
type Target interface {
	SupportsAction(action string) bool
	Invoke(action string) (Outcome, error)
}

// Starter is an optional capability: if Target implements it,
// the package-level Start calls its Start() once the signal plumbing is
// installed.
type Starter interface {
	Start() error
}

// Updater is an optional capability: if Target implements it, the main
// loop calls Update() after every dispatched signal (and after every
// snooze timeout), so periodic reconciliation happens independent of
// whether a signal arrived.
type Updater interface {
	Update() error
}

// SignalMap maps a signal name (with or without "SIG" prefix, any case) to
// the ordered list of action names invoked on the Target when that signal
// arrives.
type SignalMap map[string][]string

// Normalize uppercases and SIG-prefixes every key, returning a new
// SignalMap. It is idempotent: normalizing an already-normalized map
// returns an equal map. It fails with ErrDuplicateSignalMapping if two
// keys normalize to the same canonical name.
func Normalize(m SignalMap) (SignalMap, error) {
	out := make(SignalMap, len(m))
	for rawName, actions := range m {
		name := normalizeSignalName(rawName)
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSignalMapping, name)
		}
		if len(actions) == 0 {
			return nil, fmt.Errorf("overseer: signal %s has no actions", name)
		}
		out[name] = append([]string(nil), actions...)
	}
	return out, nil
}

// SignalHandler installs OS signal dispositions, serializes caught signals
// into a bounded queue, wakes a single main loop via a self-pipe, and
// dispatches actions onto a Target. Exactly one SignalHandler may be
// started at a time in a process; see Start.
type SignalHandler struct {
	target    Target
	actions   SignalMap // normalized signal name -> ordered actions
	installed []syscall.Signal

	queue   *sigRing
	pipe    *selfPipe
	relayCh chan os.Signal
	doneCh  chan struct{}
}

var (
	activeMu sync.Mutex
	active   *SignalHandler
)

// Start installs the given signal mappings and begins dispatching onto
// target. It fails with ErrAlreadyStarted if a SignalHandler is already
// running in this process, and with ErrUnknownAction if target doesn't
// support every action named in mappings — checked before any signal
// disposition is touched, so misconfiguration never reaches the main
// loop. If target implements Starter, its Start method is called once
// signal delivery is installed but before the main loop begins.
func Start(mappings SignalMap, target Target) (*SignalHandler, error) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active != nil {
		return nil, ErrAlreadyStarted
	}

	normalized, err := Normalize(mappings)
	if err != nil {
		return nil, err
	}
	for _, actions := range normalized {
		for _, action := range actions {
			if !target.SupportsAction(action) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
			}
		}
	}

	installed := make([]syscall.Signal, 0, len(normalized))
	for name := range normalized {
		sig, ok := signalByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSignal, name)
		}
		installed = append(installed, sig)
	}

	pipe, err := newSelfPipe()
	if err != nil {
		return nil, fmt.Errorf("overseer: creating self-pipe: %w", err)
	}

	h := &SignalHandler{
		target:    target,
		actions:   normalized,
		installed: installed,
		queue:     newSigRing(),
		pipe:      pipe,
		relayCh:   make(chan os.Signal, 2*sigQueueCap),
		doneCh:    make(chan struct{}),
	}

	signal.Notify(h.relayCh, installed...)
	go h.relay()

	if starter, ok := target.(Starter); ok {
		if err := starter.Start(); err != nil {
			h.teardown()
			return nil, err
		}
	}

	go h.loop()
	active = h
	return h, nil
}

// relay stands in for "signal-disposition context": for every signal
// delivered on relayCh it appends the canonical name to the bounded queue
// (or drops it with a diagnostic if full) and unconditionally wakes the
// main loop. No locks beyond the queue's own minimal critical section, no
// logging beyond the overflow diagnostic, no blocking I/O.
func (h *SignalHandler) relay() {
	for sig := range h.relayCh {
		sysSig, ok := sig.(syscall.Signal)
		if !ok {
			continue
		}
		name := nameBySignal(sysSig)
		if name == "" {
			continue
		}
		if !h.queue.push(name) {
			fmt.Fprintf(os.Stderr, "overseer: signal queue overflow, dropping %s\n", name)
		}
		h.pipe.wakeup(defaultWakeupMessage)
	}
}

// loop is the single main dispatch goroutine: it pops and dispatches one
// queued signal at a time, reconciles via Update, and otherwise blocks on
// the self-pipe until woken. Signal dispositions themselves run on an
// indeterminate goroutine (relay, above); loop is where all the real work
// happens, serialized.
func (h *SignalHandler) loop() {
	defer close(h.doneCh)
	for {
		brk := h.handleOne()
		if updater, ok := h.target.(Updater); ok {
			if err := updater.Update(); err != nil {
				log.Printf("overseer: update failed: %v", err)
			}
		}
		if brk {
			return
		}
		if h.queue.len() == 0 {
			if strings.Contains(h.snooze(), stopMessage) {
				return
			}
		}
	}
}

// handleOne pops a single queued signal (if any) and dispatches its
// action list onto the target in order, sequentially. It reports whether
// the last action invoked returned OutcomeBreak.
func (h *SignalHandler) handleOne() bool {
	name, ok := h.queue.pop()
	if !ok {
		return false
	}
	brk := false
	for _, action := range h.actions[name] {
		outcome, err := h.target.Invoke(action)
		if err != nil {
			log.Printf("overseer: action %q for %s failed: %v", action, name, err)
		}
		brk = outcome == OutcomeBreak
	}
	return brk
}

// snooze blocks on the self-pipe for up to one second, draining whatever
// is available once it becomes readable (or returning "" on timeout). The
// one-second tick is a liveness heartbeat: it guarantees Update still
// runs periodically even if a wakeup was lost.
func (h *SignalHandler) snooze() string {
	if !h.pipe.pollRead(1000) {
		return ""
	}
	return h.pipe.drain()
}

// Wakeup performs a non-blocking write of msg to the self-pipe. Safe to
// call from any context, including one standing in for signal-disposition
// context. It fails with ErrNotStarted if h is not (or is no longer) the
// active SignalHandler.
func (h *SignalHandler) Wakeup(msg string) error {
	activeMu.Lock()
	isActive := active == h
	activeMu.Unlock()
	if !isActive {
		return ErrNotStarted
	}
	h.pipe.wakeup(msg)
	return nil
}

// Stop restores original signal dispositions, wakes the main loop with a
// STOP message, and clears the process-wide singleton. It does not block
// for the loop to actually exit; call Join for that. Calling Stop on a
// handler that isn't the active one (already stopped, or superseded)
// fails with ErrNotStarted rather than silently doing nothing.
func (h *SignalHandler) Stop() error {
	activeMu.Lock()
	if active != h {
		activeMu.Unlock()
		return ErrNotStarted
	}
	active = nil
	activeMu.Unlock()

	h.restoreDispositions()
	h.pipe.wakeup(stopMessage)
	return nil
}

// teardown is used internally when Start fails after installing signal
// delivery but before publishing the singleton.
func (h *SignalHandler) teardown() {
	h.restoreDispositions()
	h.pipe.close()
}

func (h *SignalHandler) restoreDispositions() {
	signal.Stop(h.relayCh)
	for _, sig := range h.installed {
		// SIGCHLD quirk: if nothing else in the process had installed a
		// handler before us, the "original" disposition was effectively
		// "none installed". signal.Reset restores SIG_DFL explicitly
		// rather than leaving it in whatever state Notify/Stop left it,
		// which matters for SIGCHLD specifically: third-party reaping
		// utilities rely on the default disposition, not on an
		// ignore-and-autoreap behavior.
		signal.Reset(sig)
	}
}

// Join blocks until the main loop has exited.
func (h *SignalHandler) Join() {
	<-h.doneCh
}

// ResetForFork clears the process-wide singleton without touching the
// signal queue or closing any self-pipe. It is called automatically by
// RunWorker in the re-exec'd child before the worker body runs. Because
// WorkerHandler.Spawn uses fork+exec (not fork-only), the child is already
// a fresh process image with default dispositions and no inherited
// self-pipe fd (FD_CLOEXEC); ResetForFork is a no-op in that case, since a
// freshly exec'd worker never has an active handler of its own. It's kept
// as an explicit, callable reset rather than relying on that invariant.
func ResetForFork() {
	activeMu.Lock()
	defer activeMu.Unlock()
	active = nil
}

package overseer

import "errors"

// Error kinds produced by this package. Configuration errors (duplicate
// signal mappings, unknown actions) are fatal at Start and
// should not be retried without fixing the configuration. Runtime errors
// during dispatch or reaping are either logged by the caller or swallowed
// locally: a signal-send to an already-exited PID, or a reap of a PID some
// other waiter already collected, is not a failure.
var (
	// ErrAlreadyStarted is returned by Start when a SignalHandler is
	// already running in this process.
	ErrAlreadyStarted = errors.New("overseer: signal handler already started")

	// ErrNotStarted is returned by operations that require an active
	// SignalHandler singleton.
	ErrNotStarted = errors.New("overseer: signal handler not started")

	// ErrDuplicateSignalMapping is returned by SignalMap normalization
	// when two keys normalize to the same canonical signal name.
	ErrDuplicateSignalMapping = errors.New("overseer: duplicate signal mapping")

	// ErrUnknownAction is returned at Start when a signal mapping names an
	// action the target does not implement, and by WorkerHandler.SignalFor
	// when asked to resolve an action with no configured signal.
	ErrUnknownAction = errors.New("overseer: unknown action")

	// ErrUnknownSignal is returned when a signal mapping or action-signal
	// table names something that isn't a recognized POSIX signal name.
	ErrUnknownSignal = errors.New("overseer: unknown signal name")

	// ErrUnknownWorkerClass is returned by Spawn when the configured
	// worker class has no registered factory. RunWorker reports the same
	// condition on stderr and returns exit code 1 instead.
	ErrUnknownWorkerClass = errors.New("overseer: unknown worker class")
)

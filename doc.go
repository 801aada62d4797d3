// Package overseer supervises a fixed-size pool of worker subprocesses on a
// POSIX host. It spawns workers to a configured target count, observes
// their liveness, replaces those that die, and drives lifecycle
// transitions (graceful shutdown, forced termination, reload) in response
// to asynchronous OS signals.
//
// The package has two tightly coupled halves: Pool, which spawns, kills,
// and reaps worker PIDs, and SignalHandler, which turns asynchronous
// signal delivery into a serialized stream of actions dispatched onto a
// Target (the Pool, normally) from a single background loop.
//
// Construction of the worker program itself, configuration loading, and
// daemonization are deliberately left to callers; see cmd/overseerd for a
// complete example wiring this package into a CLI daemon.
package overseer

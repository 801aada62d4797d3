// Command example supervises a small pool of embedded-binary workers: the
// worker body (embedded/main.go) is compiled separately, embedded here via
// go:embed, and run through emrun inside each re-exec'd child. It
// demonstrates the minimum wiring needed to put overseer.Pool and
// overseer.SignalHandler in front of a real worker program.
package main

import (
	"context"
	"os"
	"strconv"

	_ "embed"

	"pkt.systems/emrun"
	"pkt.systems/logport/adapters/zerologger"
	"pkt.systems/overseer"
)

//go:embed embedded-binary
var embedded []byte

const workerClass = "embedded"

type embeddedWorker struct {
	sleepSeconds string
}

func (w *embeddedWorker) Start(ctx context.Context) error {
	if w.sleepSeconds != "" {
		os.Setenv("OVERSEER_EMBEDDED_SLEEP_SECONDS", w.sleepSeconds)
	}
	return emrun.RunIO(ctx, nil, os.Stdout, embedded)
}

func init() {
	overseer.RegisterWorkerClass(workerClass, func(options map[string]string) (overseer.Worker, error) {
		return &embeddedWorker{sleepSeconds: options["sleep_seconds"]}, nil
	})
}

func main() {
	if overseer.IsWorkerChild() {
		os.Exit(overseer.RunWorker())
	}

	l := zerologger.New(os.Stdout).With("app", "example")

	handler, err := overseer.NewWorkerHandler("embedded", workerClass, nil)
	if err != nil {
		l.Error("building worker handler", "error", err)
		os.Exit(1)
	}

	pool := overseer.NewPool("example", handler, 2, map[string]string{
		"sleep_seconds": strconv.Itoa(10),
	})

	// TERM/INT recycle the pool (kill-and-respawn); QUIT ends the process
	// entirely via Pool's built-in "terminate" action; HUP reloads.
	sh, err := overseer.Start(overseer.SignalMap{
		"TERM": {overseer.ActionStopGracefully},
		"INT":  {overseer.ActionStopGracefully},
		"QUIT": {"terminate"},
		"HUP":  {overseer.ActionReload},
	}, pool)
	if err != nil {
		l.Error("starting signal handler", "error", err)
		os.Exit(1)
	}

	l.Debug("pool started", "size", pool.Size)
	sh.Join()
	l.Debug("pool stopped")
}

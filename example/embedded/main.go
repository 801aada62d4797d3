// embedded is the worker body overseer's example embeds and runs via
// emrun. It is a plain, standalone program: overseer only ever sees its
// PID and exit status, never its internals.
package main

import (
	"os"
	"strconv"
	"time"

	"pkt.systems/logport/adapters/psl"
)

func main() {
	l := psl.New(os.Stdout).With("app", "embedded-worker")

	sleep := 10 * time.Second
	if raw := os.Getenv("OVERSEER_EMBEDDED_SLEEP_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			sleep = time.Duration(n) * time.Second
		}
	}

	l.Info("sleeping", "seconds", sleep.Seconds())
	time.Sleep(sleep)
	l.Info("done")
}

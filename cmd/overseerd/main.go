// Command overseerd is a small CLI daemon wrapping overseer.Pool and
// overseer.SignalHandler: config parsing, hot-reload, and the cobra CLI
// surface the core package deliberately has no opinion about, so the
// supervisor is usable as a standalone binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"pkt.systems/logport/adapters/zerologger"
	"pkt.systems/overseer"
)

const workerClassExec = "exec"

// execWorker runs a configured command as the worker body. It is the
// generic stand-in for whatever real worker program a deployment plugs
// in, so it's deliberately as thin as possible.
type execWorker struct {
	command string
	args    []string
}

func (w *execWorker) Start(ctx context.Context) error {
	if w.command == "" {
		return fmt.Errorf("overseerd: no worker command configured")
	}
	cmd := exec.CommandContext(ctx, w.command, w.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func init() {
	overseer.RegisterWorkerClass(workerClassExec, func(options map[string]string) (overseer.Worker, error) {
		w := &execWorker{command: options["command"]}
		if raw := options["args"]; raw != "" {
			w.args = append(w.args, splitArgs(raw)...)
		}
		return w, nil
	})
}

// splitArgs is the inverse of encodeArgs: arguments are stored
// newline-separated in the options map so spaces within a single argument
// survive the JSON round-trip untouched.
func splitArgs(raw string) []string {
	var args []string
	var cur []byte
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			args = append(args, string(cur))
			cur = nil
			continue
		}
		cur = append(cur, raw[i])
	}
	args = append(args, string(cur))
	return args
}

func encodeArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += "\n"
		}
		out += a
	}
	return out
}

func main() {
	if overseer.IsWorkerChild() {
		os.Exit(overseer.RunWorker())
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "overseerd",
		Short: "Supervise a fixed-size pool of worker subprocesses.",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the supervisor and block until it exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cfgFile)
		},
	}
	runCmd.Flags().StringVar(&cfgFile, "config", "overseerd.yaml", "path to the overseerd config file")
	root.AddCommand(runCmd)

	return root
}

func runDaemon(cfgFile string) error {
	l := zerologger.New(os.Stdout).With("app", "overseerd")

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	handler, err := overseer.NewWorkerHandler("overseerd-worker", workerClassExec, overseer.DefaultActionSignals())
	if err != nil {
		return fmt.Errorf("overseerd: building worker handler: %w", err)
	}

	pool := overseer.NewPool("overseerd", handler, cfg.Pool.Size, map[string]string{
		"command": cfg.Worker.Command,
		"args":    encodeArgs(cfg.Worker.Args),
	})

	sh, err := overseer.Start(overseer.SignalMap(cfg.Signals), pool)
	if err != nil {
		return fmt.Errorf("overseerd: starting signal handler: %w", err)
	}
	l.Info("pool started", "size", cfg.Pool.Size, "command", cfg.Worker.Command)

	watchReload(cfgFile, func(newCfg Config) {
		l.Info("config changed, applying new pool size", "size", newCfg.Pool.Size)
		pool.SetSize(newCfg.Pool.Size)
		if err := pool.Update(); err != nil {
			l.Error("reconciling pool after config change", "error", err)
		}
	}, func(err error) {
		l.Error("config reload failed", "error", err)
	})

	sh.Join()
	l.Info("pool stopped")
	return nil
}

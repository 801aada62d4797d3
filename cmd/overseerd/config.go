package main

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"pkt.systems/overseer"
)

// Config is the on-disk shape overseerd reads via viper. It deliberately
// keeps the worker side generic (a command + args overseer execs inside
// each worker), since the core package never constructs a worker program
// itself — that's left to whatever a deployment configures.
type Config struct {
	Pool struct {
		Size int `mapstructure:"size"`
	} `mapstructure:"pool"`

	Worker struct {
		Command string   `mapstructure:"command"`
		Args    []string `mapstructure:"args"`
	} `mapstructure:"worker"`

	// Signals maps signal name -> ordered action list, the same shape
	// overseer.SignalMap uses directly.
	Signals map[string][]string `mapstructure:"signals"`
}

func defaultConfig() Config {
	var c Config
	c.Pool.Size = 2
	c.Worker.Command = "/bin/sleep"
	c.Worker.Args = []string{"300"}
	c.Signals = map[string][]string{
		"HUP":  {overseer.ActionReload},
		"TERM": {overseer.ActionStopGracefully},
		"INT":  {overseer.ActionStopGracefully},
		"QUIT": {"terminate"},
	}
	return c
}

func loadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	cfg := defaultConfig()
	v.SetDefault("pool.size", cfg.Pool.Size)
	v.SetDefault("worker.command", cfg.Worker.Command)
	v.SetDefault("worker.args", cfg.Worker.Args)
	v.SetDefault("signals", cfg.Signals)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("overseerd: reading config %q: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("overseerd: parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// watchReload re-reads path on every fsnotify-driven config change (wired
// in by viper.WatchConfig) and invokes onChange with the freshly parsed
// config. Errors reloading are reported through onErr rather than
// crashing the watch loop.
func watchReload(path string, onChange func(Config), onErr func(error)) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		onErr(err)
		return
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := loadConfig(path)
		if err != nil {
			onErr(err)
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

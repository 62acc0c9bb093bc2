// Package config loads the crewsched harness configuration: a YAML file
// with environment-variable overrides on top. Everything has a sensible
// default; a missing config file is not an error.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	// Root anchors every relative path in here (store, run logs, history).
	Root string `yaml:"root" env:"CREWSCHED_ROOT"`

	Logging   Logging   `yaml:"logging"`
	Scheduler Scheduler `yaml:"scheduler"`
	Runner    Runner    `yaml:"runner"`
	Executor  Executor  `yaml:"executor"`
	History   History   `yaml:"history"`
	Metrics   Metrics   `yaml:"metrics"`
}

type Logging struct {
	Level   string     `yaml:"level" env:"CREWSCHED_LOG_LEVEL"`
	Console bool       `yaml:"console" env:"CREWSCHED_LOG_CONSOLE"`
	File    FileTarget `yaml:"file"`
}

type FileTarget struct {
	Enabled bool   `yaml:"enabled" env:"CREWSCHED_LOG_FILE_ENABLED"`
	Path    string `yaml:"path" env:"CREWSCHED_LOG_FILE_PATH"`
}

type Scheduler struct {
	PollSeconds         int    `yaml:"poll_seconds" env:"CREWSCHED_POLL_SECONDS"`
	Workers             int    `yaml:"workers" env:"CREWSCHED_WORKERS"`
	QueueSize           int    `yaml:"queue_size" env:"CREWSCHED_QUEUE_SIZE"`
	MisfireGraceSeconds int    `yaml:"misfire_grace_seconds" env:"CREWSCHED_MISFIRE_GRACE_SECONDS"`
	Timezone            string `yaml:"timezone" env:"CREWSCHED_TZ"`
}

type Runner struct {
	LogDir         string `yaml:"log_dir" env:"CREWSCHED_RUN_LOG_DIR"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"CREWSCHED_RUN_TIMEOUT_SECONDS"`
}

// Executor names the external crew-runner program. The command receives the
// kickoff payload as JSON on stdin.
type Executor struct {
	Command []string `yaml:"command" env:"CREWSCHED_EXEC_COMMAND" envSeparator:" "`
	Dir     string   `yaml:"dir" env:"CREWSCHED_EXEC_DIR"`
}

type History struct {
	Driver        string `yaml:"driver" env:"CREWSCHED_HISTORY_DRIVER"`
	Path          string `yaml:"path" env:"CREWSCHED_HISTORY_PATH"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" env:"CREWSCHED_METRICS"`
	Addr    string `yaml:"addr" env:"CREWSCHED_METRICS_ADDR"`
}

func Default() Config {
	return Config{
		Root: ".",
		Logging: Logging{
			Level:   "info",
			Console: true,
			File:    FileTarget{Path: "output/crewsched.log"},
		},
		Scheduler: Scheduler{
			PollSeconds:         5,
			Workers:             2,
			QueueSize:           64,
			MisfireGraceSeconds: 60,
		},
		Runner: Runner{
			LogDir: "output/run-logs",
		},
		History: History{
			Path: "db/history.db",
		},
		Metrics: Metrics{
			Addr: ":9090",
		},
	}
}

// Load reads path (YAML, strict keys) over the defaults, then applies
// environment overrides. A missing file just means "defaults + env".
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF; defaults already apply.
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// fall through to env + defaults
	default:
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Scheduler.PollSeconds <= 0 {
		return errors.New("config: scheduler.poll_seconds must be positive")
	}
	if c.Scheduler.Workers <= 0 {
		return errors.New("config: scheduler.workers must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.History.Driver)) {
	case "", "none", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("config: unknown history.driver %q", c.History.Driver)
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		return errors.New("config: metrics.addr is required when metrics are enabled")
	}
	return nil
}

// Resolve anchors a relative path at the configured root.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

func (c Config) RunLogDir() string   { return c.Resolve(c.Runner.LogDir) }
func (c Config) HistoryPath() string { return c.Resolve(c.History.Path) }
func (c Config) LogFilePath() string { return c.Resolve(c.Logging.File.Path) }

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Scheduler.PollSeconds) * time.Second
}

func (c Config) MisfireGrace() time.Duration {
	return time.Duration(c.Scheduler.MisfireGraceSeconds) * time.Second
}

func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Runner.TimeoutSeconds) * time.Second
}

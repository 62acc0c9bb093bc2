package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Scheduler.PollSeconds != 5 || cfg.Scheduler.Workers != 2 {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if !cfg.Logging.Console || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Runner.LogDir != "output/run-logs" {
		t.Fatalf("unexpected runner defaults: %+v", cfg.Runner)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
root: /srv/crews
logging:
  level: debug
scheduler:
  poll_seconds: 2
  workers: 4
  timezone: UTC
executor:
  command: ["python", "-m", "crew_runner"]
history:
  driver: sqlite
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Root != "/srv/crews" {
		t.Fatalf("Root = %q", cfg.Root)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Level = %q", cfg.Logging.Level)
	}
	if cfg.Scheduler.PollSeconds != 2 || cfg.Scheduler.Workers != 4 || cfg.Scheduler.Timezone != "UTC" {
		t.Fatalf("Scheduler = %+v", cfg.Scheduler)
	}
	// Untouched sections keep their defaults.
	if cfg.Scheduler.QueueSize != 64 || cfg.Scheduler.MisfireGraceSeconds != 60 {
		t.Fatalf("defaults lost: %+v", cfg.Scheduler)
	}
	if len(cfg.Executor.Command) != 3 || cfg.Executor.Command[0] != "python" {
		t.Fatalf("Executor = %+v", cfg.Executor)
	}
	// Relative paths resolve against root.
	if got := cfg.HistoryPath(); got != "/srv/crews/db/history.db" {
		t.Fatalf("HistoryPath = %q", got)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("schedular:\n  workers: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected strict decoding to reject the misspelled key")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CREWSCHED_WORKERS", "9")
	t.Setenv("CREWSCHED_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Scheduler.Workers != 9 {
		t.Fatalf("Workers = %d, want env override 9", cfg.Scheduler.Workers)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.PollSeconds = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "poll_seconds") {
		t.Fatalf("Validate = %v, want poll_seconds error", err)
	}

	cfg = Default()
	cfg.History.Driver = "postgres"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "history.driver") {
		t.Fatalf("Validate = %v, want history.driver error", err)
	}

	cfg = Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = " "
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "metrics.addr") {
		t.Fatalf("Validate = %v, want metrics.addr error", err)
	}
}

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crewsched/internal/schedule"
	"crewsched/pkg/logx"
)

type fakeExecutor struct {
	out   string
	err   error
	panic string

	gotCrew   string
	gotInputs map[string]any
}

func (f *fakeExecutor) Execute(ctx context.Context, crew string, inputs map[string]any) (string, error) {
	f.gotCrew = crew
	f.gotInputs = inputs
	if f.panic != "" {
		panic(f.panic)
	}
	return f.out, f.err
}

func readOnlyRunLog(t *testing.T, dir, id string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "schedule_"+id+"_*.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("found %d run logs for %s, want 1", len(matches), id)
	}
	b, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestRunWritesLogWithHeaderAndOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	exec := &fakeExecutor{out: "report ready\n"}
	r := New(Config{LogDir: dir}, exec, nil, logx.Nop())

	firedAt := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	e := schedule.Entry{ID: "s1", Name: "demo", Crew: "research", Inputs: map[string]any{"topic": "X"}}
	r.Run(context.Background(), e, firedAt)

	content := readOnlyRunLog(t, dir, "s1")
	if !strings.HasPrefix(content, "[schedule s1] 2025-02-03T04:05:06Z\n") {
		t.Fatalf("missing header, got: %q", content)
	}
	if !strings.Contains(content, "report ready") {
		t.Fatalf("missing output, got: %q", content)
	}
	if exec.gotCrew != "research" {
		t.Fatalf("crew = %q, want research", exec.gotCrew)
	}
	if topic, _ := exec.gotInputs["topic"].(string); topic != "X" {
		t.Fatalf("inputs not passed verbatim: %+v", exec.gotInputs)
	}

	name := filepath.Base(func() string {
		m, _ := filepath.Glob(filepath.Join(dir, "schedule_s1_*.log"))
		return m[0]
	}())
	if name != "schedule_s1_20250203-040506.log" {
		t.Fatalf("log name = %q", name)
	}
}

func TestRunCapturesFailureDetail(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	exec := &fakeExecutor{out: "partial output", err: errors.New("kickoff exploded")}
	r := New(Config{LogDir: dir}, exec, nil, logx.Nop())

	r.Run(context.Background(), schedule.Entry{ID: "s2"}, time.Now())

	content := readOnlyRunLog(t, dir, "s2")
	if !strings.Contains(content, "kickoff exploded") {
		t.Fatalf("error detail missing: %q", content)
	}
	if !strings.Contains(content, "partial output") {
		t.Fatalf("captured output missing: %q", content)
	}
}

func TestRunContainsExecutorPanic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	exec := &fakeExecutor{panic: "nil map write"}
	r := New(Config{LogDir: dir}, exec, nil, logx.Nop())

	// Must not propagate the panic.
	r.Run(context.Background(), schedule.Entry{ID: "s3"}, time.Now())

	content := readOnlyRunLog(t, dir, "s3")
	if !strings.Contains(content, "panic in executor: nil map write") {
		t.Fatalf("panic detail missing: %q", content)
	}
	if !strings.Contains(content, "runner") {
		t.Fatalf("expected a stack trace in the log, got: %q", content)
	}
}

func TestRunDefaultsInputs(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{out: "ok"}
	r := New(Config{LogDir: t.TempDir()}, exec, nil, logx.Nop())

	r.Run(context.Background(), schedule.Entry{ID: "s4"}, time.Now())

	if topic, _ := exec.gotInputs["topic"].(string); topic != "Hello World" {
		t.Fatalf("default inputs = %+v, want topic=Hello World", exec.gotInputs)
	}
}

// Package runner executes one firing of a scheduled job and records its
// outcome: a per-run log file, an optional history row, and metrics.
// Failures stop here; a broken job must never destabilize the scheduler.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"crewsched/internal/agent"
	"crewsched/internal/metrics"
	"crewsched/internal/schedule"
	"crewsched/internal/storage"
	"crewsched/pkg/logx"
)

// runLogTimeFormat names run-log files: schedule_<id>_<timestamp>.log.
const runLogTimeFormat = "20060102-150405"

type Config struct {
	// LogDir receives one log file per firing.
	LogDir string
	// Timeout bounds a single execution; 0 means no bound.
	Timeout time.Duration
	// Metrics toggles Prometheus counters (the CLI runs without them).
	Metrics bool
}

type Runner struct {
	cfg  Config
	exec agent.Executor
	hist storage.Store // nil when history is disabled
	log  logx.Logger
}

func New(cfg Config, exec agent.Executor, hist storage.Store, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{cfg: cfg, exec: exec, hist: hist, log: log}
}

// Run performs one firing synchronously. It never returns an error: the
// outcome lands in the run log, the history store and the logs.
func (r *Runner) Run(ctx context.Context, e schedule.Entry, firedAt time.Time) {
	start := time.Now()
	inputs := e.Inputs
	if len(inputs) == 0 {
		inputs = map[string]any{"topic": "Hello World"}
	}

	out, err := r.execute(ctx, e.Crew, inputs)
	took := time.Since(start)

	detail := out
	if err != nil {
		detail = errorDetail(out, err)
	}
	logPath := r.writeRunLog(e.ID, firedAt, detail)

	if r.hist != nil {
		rec := storage.RunRecord{
			ScheduleID: e.ID,
			Name:       e.Name,
			Crew:       e.Crew,
			FiredAt:    firedAt,
			Took:       took,
			OK:         err == nil,
			LogPath:    logPath,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if herr := r.hist.AppendRun(ctx, rec); herr != nil {
			r.log.Warn("run history append failed", logx.String("schedule", e.ID), logx.Err(herr))
		}
	}

	if r.cfg.Metrics {
		metrics.RunDuration.Observe(took.Seconds())
		if err != nil {
			metrics.FiringsTotal.WithLabelValues("failed").Inc()
		} else {
			metrics.FiringsTotal.WithLabelValues("ok").Inc()
		}
	}

	if err != nil {
		r.log.Warn("schedule run failed",
			logx.String("schedule", e.ID),
			logx.Duration("took", took),
			logx.String("log", logPath),
			logx.Err(err))
		return
	}
	r.log.Info("schedule run completed",
		logx.String("schedule", e.ID),
		logx.Duration("took", took),
		logx.String("log", logPath))
}

// execute invokes the collaborator with the configured timeout and converts
// panics into errors carrying the stack, so the caller always gets a
// (output, error) pair.
func (r *Runner) execute(ctx context.Context, crew string, inputs map[string]any) (out string, err error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in executor: %v\n%s", rec, debug.Stack())
		}
	}()
	return r.exec.Execute(ctx, crew, inputs)
}

// writeRunLog writes the per-firing record and returns its path ("" when the
// write itself failed; that is logged but otherwise swallowed, matching the
// availability-over-strictness stance of the store).
func (r *Runner) writeRunLog(id string, firedAt time.Time, body string) string {
	if err := os.MkdirAll(r.cfg.LogDir, 0o755); err != nil {
		r.log.Warn("cannot create run-log dir", logx.String("dir", r.cfg.LogDir), logx.Err(err))
		return ""
	}
	name := fmt.Sprintf("schedule_%s_%s.log", id, firedAt.UTC().Format(runLogTimeFormat))
	path := filepath.Join(r.cfg.LogDir, name)
	header := fmt.Sprintf("[schedule %s] %s\n", id, firedAt.UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(header+body), 0o644); err != nil {
		r.log.Warn("cannot write run log", logx.String("path", path), logx.Err(err))
		return ""
	}
	return path
}

func errorDetail(out string, err error) string {
	if out == "" {
		return err.Error()
	}
	return err.Error() + "\n\n--- captured output ---\n" + out
}

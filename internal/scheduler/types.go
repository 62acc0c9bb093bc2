package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"crewsched/internal/schedule"
)

// Runner executes one firing. Implementations must contain their own
// failures; the scheduler never inspects an outcome.
type Runner interface {
	Run(ctx context.Context, e schedule.Entry, firedAt time.Time)
}

// Config controls the scheduler service.
type Config struct {
	PollInterval time.Duration // store mtime poll cadence
	Workers      int
	QueueSize    int
	// MisfireGrace bounds how late a firing may start; beyond it the firing
	// is skipped. Also the window within which a past-due date trigger
	// still fires once on arming.
	MisfireGrace time.Duration
	Timezone     string // IANA TZ; empty means time.Local
	Metrics      bool
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.MisfireGrace <= 0 {
		c.MisfireGrace = time.Minute
	}
	return c
}

// runState serializes firings of one schedule id: a firing is dropped while
// a previous one is still pending in the queue or running.
type runState struct {
	mu      sync.Mutex
	pending bool
	running bool
}

// tryAcquire claims the pending slot. False means drop the firing.
func (st *runState) tryAcquire() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.pending || st.running {
		return false
	}
	st.pending = true
	return true
}

func (st *runState) begin() {
	st.mu.Lock()
	st.pending = false
	st.running = true
	st.mu.Unlock()
}

func (st *runState) abort() {
	st.mu.Lock()
	st.pending = false
	st.mu.Unlock()
}

func (st *runState) finish() {
	st.mu.Lock()
	st.running = false
	st.mu.Unlock()
}

// job is one armed schedule entry. Cron and interval triggers hold a cron
// entry id; date triggers hold a one-shot timer and flip fired when done.
type job struct {
	id      string
	ver     string // entry UpdatedAt at build time
	kind    schedule.TriggerKind
	entryID cron.EntryID
	timer   *time.Timer
	fired   bool
	state   *runState
}

// task is one accepted firing waiting for a worker.
type task struct {
	entry schedule.Entry
	state *runState
	due   time.Time
}

// SyncSummary reports what one reconciliation pass changed.
type SyncSummary struct {
	Added   int
	Removed int
	Rebuilt int
	// Skipped counts enabled entries left unarmed because their trigger
	// failed to build; they are retried on every later pass.
	Skipped int
}

func (s SyncSummary) Changed() bool {
	return s.Added != 0 || s.Removed != 0 || s.Rebuilt != 0
}

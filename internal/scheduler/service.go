package scheduler

import (
	"context"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"crewsched/internal/schedule"
	"crewsched/pkg/logx"
)

type Service struct {
	log    logx.Logger
	cfg    Config
	store  *schedule.Store
	runner Runner
	loc    *time.Location

	mu     sync.Mutex
	c      *cron.Cron
	jobs   map[string]*job
	queue  chan task
	stopCh chan struct{}

	pollWG sync.WaitGroup

	// lastMtime is touched only by Start() and the poll goroutine, which
	// are sequenced; no lock needed.
	lastMtime time.Time

	warnLimit *rate.Limiter
}

func New(store *schedule.Store, runner Runner, cfg Config, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}

	return &Service{
		log:    log,
		cfg:    cfg,
		store:  store,
		runner: runner,
		loc:    loc,
		// Store trouble is reported at most once a minute; the poll loop
		// would otherwise repeat itself every tick.
		warnLimit: rate.NewLimiter(rate.Every(time.Minute), 1),
	}
}

// Start arms the engine, runs the initial reconciliation pass and launches
// the poll loop and worker pool. Calling Start on a running service is a
// no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.queue = make(chan task, s.cfg.QueueSize)
	s.jobs = make(map[string]*job)
	s.c = cron.New(cron.WithLocation(s.loc))
	stopCh := s.stopCh
	queue := s.queue
	s.mu.Unlock()

	for i := 0; i < s.cfg.Workers; i++ {
		idx := i
		go func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in scheduler worker",
						logx.Int("worker", idx),
						logx.Any("panic", r),
						logx.Stack(string(debug.Stack())))
				}
			}()
			s.worker(ctx, stopCh, queue)
		}()
	}
	s.c.Start()

	// Initial pass; later passes are mtime-gated.
	s.checkStore(true)

	s.pollWG.Add(1)
	go func() {
		defer s.pollWG.Done()
		s.pollLoop(ctx, stopCh)
	}()

	s.log.Info("scheduler started",
		logx.Int("workers", s.cfg.Workers),
		logx.String("tz", s.loc.String()),
		logx.Duration("poll", s.cfg.PollInterval),
		logx.String("store", s.store.Path()))
}

// Stop halts the poll loop and the engine promptly. In-flight job
// executions are not joined; they complete on their own or are abandoned at
// process exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	c := s.c
	jobs := s.jobs
	s.stopCh = nil
	s.c = nil
	s.queue = nil
	s.jobs = nil
	s.mu.Unlock()

	close(stopCh)
	if c != nil {
		// Deliberately not waiting on the returned context: shutdown is
		// best-effort, not a graceful drain.
		c.Stop()
	}
	for _, j := range jobs {
		if j.timer != nil {
			j.timer.Stop()
		}
	}
	s.pollWG.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Service) pollLoop(ctx context.Context, stopCh <-chan struct{}) {
	t := time.NewTicker(s.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-t.C:
			s.checkStore(false)
		}
	}
}

// checkStore runs a reconciliation pass when the backing file's mtime moved
// since the previous tick. One stat call per quiescent tick is the whole
// steady-state cost of polling.
func (s *Service) checkStore(force bool) {
	var mtime time.Time
	fi, err := os.Stat(s.store.Path())
	switch {
	case err == nil:
		mtime = fi.ModTime()
	case os.IsNotExist(err):
		// First run: nothing persisted yet.
	default:
		if s.warnLimit.Allow() {
			s.log.Warn("cannot stat schedule store", logx.String("path", s.store.Path()), logx.Err(err))
		}
		return
	}

	if !force && mtime.Equal(s.lastMtime) {
		return
	}
	s.lastMtime = mtime
	s.Sync()
}

// ScheduledIDs returns the ids currently tracked by the engine, sorted.
func (s *Service) ScheduledIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

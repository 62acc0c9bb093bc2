package scheduler

import (
	"time"

	"crewsched/internal/metrics"
	"crewsched/internal/schedule"
	"crewsched/pkg/logx"
)

// Sync runs one reconciliation pass against the store's current contents and
// reports what changed. It is idempotent: with no store change since the
// previous pass it applies nothing.
//
// Triggers are rebuilt from the entry fields on every pass, so an entry whose
// trigger failed to build self-heals as soon as the stored fields are fixed.
func (s *Service) Sync() SyncSummary {
	entries := s.store.List()

	type armed struct {
		e    schedule.Entry
		trig schedule.Trigger
	}
	active := make(map[string]armed, len(entries))
	var sum SyncSummary
	for _, e := range entries {
		if !e.Enabled {
			continue
		}
		trig, err := schedule.BuildTrigger(e, s.loc)
		if err != nil {
			sum.Skipped++
			s.log.Warn("skipping schedule: invalid trigger", logx.String("schedule", e.ID), logx.Err(err))
			continue
		}
		active[e.ID] = armed{e: e, trig: trig}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		// Not started (or already stopped); nothing to reconcile against.
		return sum
	}

	for id, j := range s.jobs {
		if _, ok := active[id]; ok {
			continue
		}
		s.disarmLocked(j)
		delete(s.jobs, id)
		sum.Removed++
	}

	for id, a := range active {
		j := s.jobs[id]
		if j != nil && j.ver == a.e.UpdatedAt {
			continue
		}
		rebuilt := j != nil
		if j != nil {
			// Remove-then-add: the new trigger/inputs must fully replace
			// the stale job.
			s.disarmLocked(j)
			delete(s.jobs, id)
		}
		if err := s.armLocked(a.e, a.trig); err != nil {
			sum.Skipped++
			s.log.Error("cannot arm schedule", logx.String("schedule", id), logx.Err(err))
			continue
		}
		if rebuilt {
			sum.Rebuilt++
		} else {
			sum.Added++
		}
	}

	if s.cfg.Metrics {
		metrics.ReconcilePassesTotal.Inc()
		metrics.ReconcileChangesTotal.WithLabelValues("added").Add(float64(sum.Added))
		metrics.ReconcileChangesTotal.WithLabelValues("removed").Add(float64(sum.Removed))
		metrics.ReconcileChangesTotal.WithLabelValues("rebuilt").Add(float64(sum.Rebuilt))
		metrics.JobsScheduled.Set(float64(len(s.jobs)))
	}
	if sum.Changed() {
		s.log.Info("schedules reconciled",
			logx.Int("added", sum.Added),
			logx.Int("removed", sum.Removed),
			logx.Int("rebuilt", sum.Rebuilt),
			logx.Int("skipped", sum.Skipped),
			logx.Int("scheduled", len(s.jobs)))
	}
	return sum
}

// armLocked installs one job for the built trigger. Caller holds s.mu.
func (s *Service) armLocked(e schedule.Entry, trig schedule.Trigger) error {
	state := &runState{}
	j := &job{id: e.ID, ver: e.UpdatedAt, kind: trig.Kind, state: state}

	switch trig.Kind {
	case schedule.TriggerDate:
		delay := time.Until(trig.RunAt)
		if delay < -s.cfg.MisfireGrace {
			// Already past its window: terminal until the entry is edited.
			s.log.Warn("one-shot schedule missed its window; not running",
				logx.String("schedule", e.ID),
				logx.Time("run_at", trig.RunAt))
			j.fired = true
			break
		}
		if delay < 0 {
			delay = 0
		}
		entry, ver := e, e.UpdatedAt
		j.timer = time.AfterFunc(delay, func() {
			s.markFired(entry.ID, ver)
			s.fire(entry, state)
		})

	default:
		entry := e
		id, err := s.c.AddFunc(trig.Spec, func() {
			s.fire(entry, state)
		})
		if err != nil {
			return err
		}
		j.entryID = id
	}

	s.jobs[e.ID] = j
	return nil
}

// disarmLocked detaches a job from the engine. Caller holds s.mu. A run
// already in flight is unaffected; only future firings stop.
func (s *Service) disarmLocked(j *job) {
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
	if j.entryID != 0 {
		s.c.Remove(j.entryID)
		j.entryID = 0
	}
}

// markFired records completion of a one-shot date trigger so later passes
// treat the job as terminal rather than re-arming it.
func (s *Service) markFired(id, ver string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j := s.jobs[id]; j != nil && j.ver == ver {
		j.fired = true
		j.timer = nil
	}
}

// fire admits one firing into the worker queue, applying the overlap and
// coalesce policy.
func (s *Service) fire(e schedule.Entry, state *runState) {
	if !state.tryAcquire() {
		s.log.Debug("firing dropped; previous run still active", logx.String("schedule", e.ID))
		if s.cfg.Metrics {
			metrics.FiringsTotal.WithLabelValues("dropped").Inc()
		}
		return
	}

	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		state.abort()
		return
	}

	select {
	case q <- task{entry: e, state: state, due: time.Now()}:
	default:
		state.abort()
		s.log.Warn("scheduler queue full; dropping firing",
			logx.String("schedule", e.ID),
			logx.Int("queue_cap", cap(q)))
		if s.cfg.Metrics {
			metrics.FiringsTotal.WithLabelValues("dropped").Inc()
		}
	}
}

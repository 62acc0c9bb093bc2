package scheduler

import (
	"context"
	"time"

	"crewsched/internal/metrics"
	"crewsched/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	// A firing that sat in the queue past the grace period runs too late to
	// be useful; skip it instead.
	if late := time.Since(t.due); s.cfg.MisfireGrace > 0 && late > s.cfg.MisfireGrace {
		t.state.abort()
		s.log.Warn("firing delayed past grace period; skipping",
			logx.String("schedule", t.entry.ID),
			logx.Duration("late", late))
		if s.cfg.Metrics {
			metrics.FiringsTotal.WithLabelValues("skipped").Inc()
		}
		return
	}

	t.state.begin()
	defer t.state.finish()
	s.runner.Run(ctx, t.entry, t.due)
}

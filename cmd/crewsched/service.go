package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"crewsched/internal/config"
	"crewsched/internal/metrics"
	"crewsched/internal/runner"
	"crewsched/internal/schedule"
	"crewsched/internal/scheduler"
	"crewsched/internal/storage"
	"crewsched/pkg/logx"
)

// cmdService runs the long-lived reconciliation service until SIGINT or
// SIGTERM. cfgPath is watched so logging config can be re-applied without a
// restart.
func cmdService(cfgPath string, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("service", flag.ExitOnError)
	poll := fs.Duration("poll", 0, "store poll interval (0 = config value)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *poll > 0 {
		secs := int(*poll / time.Second)
		if secs < 1 {
			secs = 1
		}
		cfg.Scheduler.PollSeconds = secs
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.LogFilePath(),
		},
	})
	defer logSvc.Close()

	log.Info("crewsched service starting",
		logx.String("config", cfgPath),
		logx.String("root", cfg.Root))

	store := schedule.NewStore(cfg.Root, log.With(logx.String("comp", "store")))

	hist, err := storage.Open(storage.Config{
		Driver:      cfg.History.Driver,
		Path:        cfg.HistoryPath(),
		BusyTimeout: time.Duration(cfg.History.BusyTimeoutMS) * time.Millisecond,
	}, log.With(logx.String("comp", "history")))
	if err != nil {
		return err
	}
	if hist != nil {
		defer hist.Close()
	}

	exec, err := buildExecutor(cfg)
	if err != nil {
		return err
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metrics.Register()
		metricsSrv = metrics.NewServer(cfg.Metrics.Addr)
		go func() {
			log.Info("metrics listening", logx.String("addr", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", logx.Err(err))
			}
		}()
	}

	run := runner.New(runner.Config{
		LogDir:  cfg.RunLogDir(),
		Timeout: cfg.RunTimeout(),
		Metrics: cfg.Metrics.Enabled,
	}, exec, hist, log.With(logx.String("comp", "runner")))

	svc := scheduler.New(store, run, scheduler.Config{
		PollInterval: cfg.PollInterval(),
		Workers:      cfg.Scheduler.Workers,
		QueueSize:    cfg.Scheduler.QueueSize,
		MisfireGrace: cfg.MisfireGrace(),
		Timezone:     cfg.Scheduler.Timezone,
		Metrics:      cfg.Metrics.Enabled,
	}, log.With(logx.String("comp", "scheduler")))
	svc.Start(ctx)

	// Logging is the only section applied live; scheduler and store settings
	// need a restart.
	go func() {
		err := config.Watch(ctx, cfgPath, log.With(logx.String("comp", "config")), func(next config.Config) {
			logSvc.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File: logx.FileConfig{
					Enabled: next.Logging.File.Enabled,
					Path:    next.LogFilePath(),
				},
			})
		})
		if err != nil {
			log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("shutdown signal received")

	svc.Stop()
	if metricsSrv != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shCtx)
	}
	log.Info("crewsched service stopped")
	return nil
}

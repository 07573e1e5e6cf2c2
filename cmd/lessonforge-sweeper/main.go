// The lessonforge-sweeper daemon permanently deletes archived lessons whose
// retention window has lapsed. It runs the sweep on a cron schedule, or once
// with --run-once.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/lessonforge/lessonforge/pkg/blob"
	"github.com/lessonforge/lessonforge/pkg/config"
	"github.com/lessonforge/lessonforge/pkg/lifecycle"
	"github.com/lessonforge/lessonforge/pkg/policy"
	"github.com/lessonforge/lessonforge/pkg/store"
	"github.com/lessonforge/lessonforge/pkg/sweep"
)

var (
	schedule = flag.String("schedule", "", "Cron schedule for the sweep (overrides LESSONFORGE_SWEEP_SCHEDULE)")
	runOnce  = flag.Bool("run-once", false, "Run one sweep and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	ctx := context.Background()

	st, err := store.Connect(ctx, store.Options{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("connect document store")
	}
	defer func() { _ = st.Close(context.Background()) }()

	bl, err := blob.NewS3Store(ctx, cfg.Blob, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect blob store")
	}

	machine := lifecycle.New(st, bl, policy.New(st, policy.WithLogger(logger)), lifecycle.WithLogger(logger))
	sweeper := sweep.New(st, machine,
		sweep.WithLogger(logger),
		sweep.WithRetention(cfg.Sweep.Retention),
		sweep.WithConcurrency(cfg.Sweep.Concurrency),
	)

	if *runOnce {
		result, err := sweeper.Run(ctx)
		if err != nil {
			logger.WithError(err).Fatal("sweep failed")
		}
		logger.WithField("deleted", result.Deleted).Info("sweep finished")
		return
	}

	cronSchedule := cfg.Sweep.Schedule
	if *schedule != "" {
		cronSchedule = *schedule
	}

	c := cron.New()
	_, err = c.AddFunc(cronSchedule, func() {
		if _, err := sweeper.Run(context.Background()); err != nil {
			logger.WithError(err).Error("sweep run failed")
		}
	})
	if err != nil {
		logger.WithError(err).Fatal("schedule sweep")
	}

	c.Start()
	logger.WithField("schedule", cronSchedule).Info("retention sweeper started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("sweeper stopped")
}

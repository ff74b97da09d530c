// Package scheduler runs background maintenance through asynq: trace
// retention sweeps and interaction counter rebuilds.
package scheduler

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"spike_backend/internal/config"
	"spike_backend/internal/profiles"
	"spike_backend/internal/traces"
	"spike_backend/platform/logger"
)

// sweepCron fires the nightly retention sweep.
const sweepCron = "0 3 * * *"

type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	cfg       *config.Config
	traces    *traces.Repo
	profiles  *profiles.Repo
	log       *logger.Logger
}

func NewWorker(cfg *config.Config, pool *pgxpool.Pool, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	queue := queueName(cfg)
	concurrency := cfg.AsynqConcurrency
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: asynq.NewScheduler(opt, nil),
		mux:       mux,
		cfg:       cfg,
		traces:    traces.New(pool),
		profiles:  profiles.New(pool),
		log:       log,
	}

	mux.HandleFunc(TaskTraceRetentionSweep, w.handleTraceRetentionSweep)
	mux.HandleFunc(TaskInteractionRecount, w.handleInteractionRecount)

	sweepTask, err := NewTraceRetentionSweepTask(TraceRetentionSweepPayload{})
	if err != nil {
		return nil, err
	}
	if _, err := w.scheduler.Register(sweepCron, sweepTask, asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return w, nil
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.log.Error("task scheduler stopped", "error", err)
		}
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("task worker stopped", "error", err)
	}
}

func (w *Worker) handleTraceRetentionSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTraceRetentionSweepPayload(task)
	if err != nil {
		return err
	}

	retention := w.cfg.TraceRetention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	if retention <= 0 {
		return nil
	}

	cutoff := time.Now().Add(-retention)
	deleted, err := w.traces.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		w.log.Info("trace retention sweep", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
	return nil
}

func (w *Worker) handleInteractionRecount(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseInteractionRecountPayload(task)
	if err != nil {
		return err
	}
	if payload.AdvisorID == "" || payload.ClientID == "" {
		return nil
	}
	return w.profiles.RecountInteractions(ctx, payload.AdvisorID, payload.ClientID)
}

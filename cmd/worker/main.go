package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/anatolia-crm/anatolia-crm/internal/app"
	"github.com/anatolia-crm/anatolia-crm/internal/recon"
	"github.com/anatolia-crm/anatolia-crm/internal/store"
	"github.com/anatolia-crm/anatolia-crm/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	st, err := store.Open(cfg.DataPath, logger)
	if err != nil {
		logger.Error("open document", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	var duesCache *recon.Cache
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	} else {
		duesCache = recon.NewCache(redisClient, cfg.CacheTTL)
	}

	reconService := recon.NewService(st, duesCache, logger)

	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	duesJob := jobs.NewDuesScanJob(reconService, client, logger)

	duesTask, err := jobs.NewDuesScanTask(jobs.DuesScanPayload{NotifyTo: cfg.SMTPFrom})
	if err != nil {
		logger.Error("build dues task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDuesScan, Handler: duesJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DuesScanCron, Task: duesTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

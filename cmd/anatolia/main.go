package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/anatolia-crm/anatolia-crm/internal/app"
	"github.com/anatolia-crm/anatolia-crm/internal/eta"
	"github.com/anatolia-crm/anatolia-crm/internal/importer"
	"github.com/anatolia-crm/anatolia-crm/internal/masterdata"
	"github.com/anatolia-crm/anatolia-crm/internal/recon"
	"github.com/anatolia-crm/anatolia-crm/internal/store"
	"github.com/anatolia-crm/anatolia-crm/internal/workflow"
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
		logger.Warn("redis unavailable, dues cache disabled", slog.Any("error", err))
	} else {
		duesCache = recon.NewCache(redisClient, cfg.CacheTTL)
	}

	resolver := eta.NewResolver(st)
	engine := workflow.NewEngine(st, resolver, logger)
	reconService := recon.NewService(st, duesCache, logger)
	importService := importer.NewService(st, logger)
	masterService := masterdata.NewService(st, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterDeps{
		Logger:     logger,
		Config:     cfg,
		Workflow:   workflow.NewHandler(logger, engine),
		Recon:      recon.NewHandler(logger, reconService),
		ETA:        eta.NewHandler(logger, resolver),
		Importer:   importer.NewHandler(logger, importService),
		Masterdata: masterdata.NewHandler(logger, masterService, engine),
		Jobs:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

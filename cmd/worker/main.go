package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-interiors/meridian-quotes/internal/app"
	"github.com/meridian-interiors/meridian-quotes/internal/approval"
	"github.com/meridian-interiors/meridian-quotes/internal/catalog"
	jobmetrics "github.com/meridian-interiors/meridian-quotes/internal/jobs"
	"github.com/meridian-interiors/meridian-quotes/internal/platform/cache"
	"github.com/meridian-interiors/meridian-quotes/internal/platform/db"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/rules"
	"github.com/meridian-interiors/meridian-quotes/jobs"
	"github.com/meridian-interiors/meridian-quotes/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// The worker reads quotations for rendering and recomputes open ones
	// during the sweep; it never writes audit entries of its own.
	catalogService := catalog.NewService(catalog.NewRepository(pool))
	rulesService := rules.NewService(rules.NewRepository(pool), rules.NewCache(redisClient, cfg.RulesTTL))
	quotesService := quotes.NewService(quotes.NewRepository(pool), catalogService, rulesService, nil, logger, nil, nil)
	approvalRepo := approval.NewRepository(pool)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	renderer := report.NewRenderer(pdfClient, approvalRepo, quotesService)

	metrics := jobmetrics.NewMetrics(nil)
	sweepJob := jobs.NewTotalsSweepJob(quotesService, logger, metrics)
	sweepTask, err := jobs.NewTotalsSweepTask(jobs.TotalsSweepPayload{BatchSize: 200})
	if err != nil {
		logger.Error("build totals sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Renderer:  renderer,
		Store:     approvalRepo,
		OutputDir: cfg.AgreementDir,
		Metrics:   metrics,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeTotalsSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

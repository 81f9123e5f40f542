package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/meridian-interiors/meridian-quotes/internal/app"
	"github.com/meridian-interiors/meridian-quotes/internal/approval"
	"github.com/meridian-interiors/meridian-quotes/internal/audit"
	"github.com/meridian-interiors/meridian-quotes/internal/catalog"
	"github.com/meridian-interiors/meridian-quotes/internal/changeorders"
	"github.com/meridian-interiors/meridian-quotes/internal/observability"
	"github.com/meridian-interiors/meridian-quotes/internal/platform/cache"
	"github.com/meridian-interiors/meridian-quotes/internal/platform/db"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/rules"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
	"github.com/meridian-interiors/meridian-quotes/internal/templates"
	"github.com/meridian-interiors/meridian-quotes/jobs"
	"github.com/meridian-interiors/meridian-quotes/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	metrics := observability.NewMetrics()
	validate := validator.New()

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	rulesService := rules.NewService(rules.NewRepository(pool), rules.NewCache(redisClient, cfg.RulesTTL))
	rulesHandler := rules.NewHandler(logger, rulesService)

	quotesRepo := quotes.NewRepository(pool)
	quotesService := quotes.NewService(quotesRepo, catalogService, rulesService, auditLogger, logger, metrics, nil)
	quotesHandler := quotes.NewHandler(logger, quotesService, validate)

	templatesService := templates.NewService(templates.NewRepository(pool), quotesService, auditLogger, logger, metrics)
	templatesHandler := templates.NewHandler(logger, templatesService, validate)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	approvalRepo := approval.NewRepository(pool)
	approvalService := approval.NewService(
		quotesService,
		quotesRepo,
		approvalRepo,
		catalogService,
		rulesService,
		approvalRecorder,
		auditLogger,
		redisClient,
		jobsClient,
		logger,
		metrics,
	)
	approvalHandler := approval.NewHandler(logger, approvalService)

	changeOrderService := changeorders.NewService(
		changeorders.NewRepository(pool),
		quotesService,
		approvalService,
		rulesService,
		approvalRecorder,
		auditLogger,
		logger,
		metrics,
		nil,
	)
	changeOrderHandler := changeorders.NewHandler(logger, changeOrderService, validate)

	auditHandler := audit.NewHandler(logger, audit.NewService(audit.NewRepository(pool)))

	pdfClient := report.NewClient(cfg.GotenbergURL)
	renderer := report.NewRenderer(pdfClient, approvalRepo, quotesService)
	reportHandler := report.NewHandler(pdfClient, renderer, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		QuotesHandler:      quotesHandler,
		TemplatesHandler:   templatesHandler,
		ApprovalHandler:    approvalHandler,
		ChangeOrderHandler: changeOrderHandler,
		RulesHandler:       rulesHandler,
		AuditHandler:       auditHandler,
		ReportHandler:      reportHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
}

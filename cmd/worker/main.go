package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/tradewind-oms/tradewind-oms/internal/app"
	"github.com/tradewind-oms/tradewind-oms/internal/challans"
	"github.com/tradewind-oms/tradewind-oms/internal/platform/db"
	"github.com/tradewind-oms/tradewind-oms/internal/shared"
	"github.com/tradewind-oms/tradewind-oms/jobs"
	"github.com/tradewind-oms/tradewind-oms/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{
		MaxConns:        cfg.PGMaxConns,
		MaxConnLifetime: cfg.PGConnLife,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	pdfProcessor := jobs.NewChallanPDFProcessor(
		challans.NewRepository(pool),
		report.NewClient(cfg.GotenbergURL),
		cfg.ChallanPDFDir,
		logger,
	)
	maintenance := jobs.NewMaintenanceProcessor(shared.NewIdempotencyStore(pool), logger)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(time.Now().UTC())
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskChallanPDF, Handler: pdfProcessor.HandlePDF},
			{Type: jobs.TaskChallanArchive, Handler: pdfProcessor.HandleArchive},
			{Type: jobs.TaskIdempotencyCleanup, Handler: maintenance.HandleIdempotencyCleanup},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: cleanupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("queue", jobs.QueueDefault))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}

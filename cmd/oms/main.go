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
	"github.com/joho/godotenv"

	"github.com/tradewind-oms/tradewind-oms/internal/app"
	"github.com/tradewind-oms/tradewind-oms/internal/challans"
	"github.com/tradewind-oms/tradewind-oms/internal/dashboard"
	"github.com/tradewind-oms/tradewind-oms/internal/events"
	"github.com/tradewind-oms/tradewind-oms/internal/observability"
	"github.com/tradewind-oms/tradewind-oms/internal/platform/cache"
	"github.com/tradewind-oms/tradewind-oms/internal/platform/db"
	"github.com/tradewind-oms/tradewind-oms/internal/purchaseorders"
	"github.com/tradewind-oms/tradewind-oms/internal/redemption"
	"github.com/tradewind-oms/tradewind-oms/internal/shared"
	"github.com/tradewind-oms/tradewind-oms/internal/vendors"
	"github.com/tradewind-oms/tradewind-oms/jobs"
	"github.com/tradewind-oms/tradewind-oms/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	// Redis is best-effort at boot: the dashboard cache degrades to direct
	// queries when the client is absent.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, "oms-api", func(err error) {
			logger.Warn("kafka delivery", slog.Any("error", err))
		})
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Warn("kafka close", slog.Any("error", err))
			}
		}()
		publisher = kafkaPublisher
	}

	metrics := observability.NewMetrics()
	validate := validator.New()
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)

	vendorService := vendors.NewService(vendors.NewRepository(pool))
	redemptionService := redemption.NewService(redemption.NewRepository(pool))

	poService := purchaseorders.NewService(
		purchaseorders.NewRepository(pool),
		vendors.NewPOAdapter(vendorService),
		redemption.NewPOAdapter(redemptionService),
		auditLogger,
		publisher,
		logger,
	)

	var courier challans.CourierGateway = challans.ManualCourier{}
	if cfg.CourierURL != "" {
		courier = challans.NewHTTPCourier(cfg.CourierURL, cfg.CourierName)
	}
	challanService := challans.NewService(
		challans.NewRepository(pool),
		challans.NewRedemptionOrderSource(redemptionService),
		courier,
		jobClient,
		publisher,
		logger,
	)

	dashboardService := dashboard.NewService(pool, dashboard.NewCache(redisClient, cfg.DashboardTTL))

	pdfClient := report.NewClient(cfg.GotenbergURL)
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		PurchaseOrderHandler: purchaseorders.NewHandler(poService, validate, logger, metrics, idempotency),
		VendorHandler:        vendors.NewHandler(vendorService, validate),
		RedemptionHandler:    redemption.NewHandler(redemptionService, validate),
		ChallanHandler:       challans.NewHandler(challanService, validate),
		DashboardHandler:     dashboard.NewHandler(dashboardService),
		ReportHandler:        report.NewHandler(pdfClient, poService, vendors.NewPOAdapter(vendorService), redemptionService, validate),
		JobHandler:           jobs.NewHandler(inspector, logger),
		Metrics:              metrics,
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
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}

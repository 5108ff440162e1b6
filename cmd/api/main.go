package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/reservation-engine/api"
	"github.com/angelmondragon/reservation-engine/api/controllers"
	"github.com/angelmondragon/reservation-engine/api/routes"
	"github.com/angelmondragon/reservation-engine/internal/adjustments"
	"github.com/angelmondragon/reservation-engine/internal/inventory"
	"github.com/angelmondragon/reservation-engine/internal/slots"
	"github.com/angelmondragon/reservation-engine/pkg/config"
	"github.com/angelmondragon/reservation-engine/pkg/db"
	"github.com/angelmondragon/reservation-engine/pkg/logger"
	"github.com/angelmondragon/reservation-engine/pkg/metrics"
	"github.com/angelmondragon/reservation-engine/pkg/migrate"
	"github.com/angelmondragon/reservation-engine/pkg/outbox"
	"github.com/angelmondragon/reservation-engine/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{"database": dbClient}
	var projector inventory.Projector = inventory.NoopProjector{}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		readiness["redis"] = redisClient
		projector = inventory.NewRedisProjector(redisClient)
	} else {
		logg.Warn(context.Background(), "redis not configured; sellable projection disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reservationMetrics := metrics.NewReservationMetrics(registry)

	publisher := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledger := inventory.NewRepository(dbClient.DB())

	slotService, err := slots.NewService(slots.ServiceParams{
		Repo:    slots.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Policy:  slots.Policy{MinDuration: cfg.Slots.MinDuration(), MaxHorizon: cfg.Slots.MaxHorizon},
		Metrics: reservationMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create slot service", err)
		os.Exit(1)
	}

	adjustmentService, err := adjustments.NewService(adjustments.ServiceParams{
		Repo:      adjustments.NewRepository(dbClient.DB()),
		Ledger:    ledger,
		Tx:        dbClient,
		Outbox:    publisher,
		Projector: projector,
		Metrics:   reservationMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create adjustment service", err)
		os.Exit(1)
	}

	stockService, err := inventory.NewService(inventory.ServiceParams{
		Repo:              ledger,
		Tx:                dbClient,
		Outbox:            publisher,
		Audit:             adjustmentService,
		Projector:         projector,
		Metrics:           reservationMetrics,
		Logger:            logg,
		LowStockThreshold: cfg.Stock.LowStockThreshold,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Slots:       slotService,
		Stock:       stockService,
		Adjustments: adjustmentService,
		Readiness:   readiness,
		Gatherer:    registry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "api",
	})

	if err := api.NewServer(cfg, handler, logg).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api shut down gracefully")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/labeltrack-backend/api/routes"
	"github.com/angelmondragon/labeltrack-backend/internal/labelcodes"
	"github.com/angelmondragon/labeltrack-backend/internal/labelevents"
	"github.com/angelmondragon/labeltrack-backend/internal/labels"
	"github.com/angelmondragon/labeltrack-backend/pkg/config"
	"github.com/angelmondragon/labeltrack-backend/pkg/db"
	"github.com/angelmondragon/labeltrack-backend/pkg/logger"
	"github.com/angelmondragon/labeltrack-backend/pkg/metrics"
	"github.com/angelmondragon/labeltrack-backend/pkg/migrate"
	"github.com/angelmondragon/labeltrack-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "api",
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
	} else {
		logg.Warn(ctx, "redis not configured, idempotent replay disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	lifecycleMetrics := metrics.NewLifecycleMetrics(registry)

	labelService, err := buildLabelService(cfg, logg, dbClient, lifecycleMetrics)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, labelService, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(logg.WithField(groupCtx, "addr", server.Addr), "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func buildLabelService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, lifecycleMetrics *metrics.LifecycleMetrics) (labels.Service, error) {
	generator, err := labelcodes.NewGenerator(labelcodes.Options{
		Prefix:      cfg.Labels.CodePrefix,
		Length:      cfg.Labels.CodeLength,
		MaxAttempts: cfg.Labels.MaxCodeAttempts,
		OnCollision: func(code string) {
			lifecycleMetrics.IncCodeCollision()
			logg.Debug(logg.WithField(context.Background(), "code", code), "label code collision")
		},
	})
	if err != nil {
		return nil, err
	}

	events, err := labelevents.NewService(labelevents.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}

	return labels.NewService(labels.ServiceParams{
		Tx:               dbClient,
		Repo:             labels.NewRepository(dbClient.DB()),
		Events:           events,
		Codes:            generator,
		Locations:        labels.NewAllowlistPolicy(cfg.Labels.LocationAllowlist),
		Metrics:          lifecycleMetrics,
		Logger:           logg,
		MinQuantity:      cfg.Labels.MinBatchQuantity,
		MaxQuantity:      cfg.Labels.MaxBatchQuantity,
		DuplicateRetries: cfg.Labels.DuplicateRetries,
		RetiredWarning:   cfg.Labels.RetiredScanNotice,
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Luis3c4/IMEI/api/routes"
	"github.com/Luis3c4/IMEI/internal/analytics"
	"github.com/Luis3c4/IMEI/internal/catalog"
	"github.com/Luis3c4/IMEI/internal/devices"
	"github.com/Luis3c4/IMEI/pkg/bigquery"
	"github.com/Luis3c4/IMEI/pkg/config"
	"github.com/Luis3c4/IMEI/pkg/db"
	"github.com/Luis3c4/IMEI/pkg/instance"
	"github.com/Luis3c4/IMEI/pkg/logger"
	"github.com/Luis3c4/IMEI/pkg/metrics"
	"github.com/Luis3c4/IMEI/pkg/migrate"
	"github.com/Luis3c4/IMEI/pkg/outbox"
	"github.com/Luis3c4/IMEI/pkg/redis"
)

const (
	serviceName     = "api"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	addr := listenAddr(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeResource(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer closeResource(ctx, logg, "redis", redisClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("connect bigquery: %w", err)
	}
	defer closeResource(ctx, logg, "bigquery", bqClient.Close)

	handler, err := buildRouter(cfg, logg, dbClient, redisClient, bqClient)
	if err != nil {
		return err
	}
	server := &http.Server{Addr: addr, Handler: handler}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server stopped: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
	return nil
}

func buildRouter(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, bqClient *bigquery.Client) (http.Handler, error) {
	pipeline := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	catalogService, err := catalog.NewService(
		catalog.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		redisClient,
		pipeline,
		cfg.Cache.HierarchyTTL,
		logg,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}

	deviceService, err := devices.NewService(devices.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return nil, fmt.Errorf("device service: %w", err)
	}

	analyticsService, err := analytics.NewService(bqClient, cfg.GCP.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.SightingsTable)
	if err != nil {
		return nil, fmt.Errorf("analytics service: %w", err)
	}

	return routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		redisClient,
		bqClient,
		catalogService,
		deviceService,
		analyticsService,
		pipeline,
	), nil
}

// listenAddr prefers the PORT the platform injects over the configured port.
func listenAddr(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + cfg.App.Port
}

func closeResource(ctx context.Context, logg *logger.Logger, name string, close func() error) {
	if err := close(); err != nil {
		logg.Error(ctx, "closing "+name, err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/Luis3c4/IMEI/internal/analytics/router"
	"github.com/Luis3c4/IMEI/internal/analytics/worker"
	"github.com/Luis3c4/IMEI/internal/analytics/writer"
	"github.com/Luis3c4/IMEI/pkg/bigquery"
	"github.com/Luis3c4/IMEI/pkg/config"
	"github.com/Luis3c4/IMEI/pkg/instance"
	"github.com/Luis3c4/IMEI/pkg/logger"
	"github.com/Luis3c4/IMEI/pkg/outbox/idempotency"
	"github.com/Luis3c4/IMEI/pkg/pubsub"
	"github.com/Luis3c4/IMEI/pkg/redis"
)

const serviceName = "analytics-worker"

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
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer closeResource(ctx, logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("connect pubsub: %w", err)
	}
	defer closeResource(ctx, logg, "pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("connect bigquery: %w", err)
	}
	defer closeResource(ctx, logg, "bigquery", bqClient.Close)

	service, err := buildService(cfg, logg, redisClient, pubsubClient, bqClient)
	if err != nil {
		return err
	}

	logg.Info(ctx, "analytics worker ready")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("analytics worker stopped: %w", err)
	}
	return nil
}

func buildService(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, pubsubClient *pubsub.Client, bqClient *bigquery.Client) (*worker.Service, error) {
	subscription := pubsubClient.DomainSubscription()
	if subscription == nil {
		return nil, errors.New("domain subscription not configured")
	}

	dedupe, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("idempotency manager: %w", err)
	}

	sightings, err := writer.New(bqClient, writer.Config{
		SightingsTable: cfg.BigQuery.SightingsTable,
	})
	if err != nil {
		return nil, fmt.Errorf("sightings writer: %w", err)
	}

	handler, err := router.NewRouter(sightings, logg, nil)
	if err != nil {
		return nil, fmt.Errorf("event router: %w", err)
	}

	service, err := worker.NewService(subscription, handler, dedupe, logg)
	if err != nil {
		return nil, fmt.Errorf("worker service: %w", err)
	}
	return service, nil
}

func closeResource(ctx context.Context, logg *logger.Logger, name string, close func() error) {
	if err := close(); err != nil {
		logg.Error(ctx, "closing "+name, err)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/medcart-backend/internal/alerts"
	"github.com/angelmondragon/medcart-backend/internal/cart"
	"github.com/angelmondragon/medcart-backend/internal/cron"
	"github.com/angelmondragon/medcart-backend/internal/orders"
	product "github.com/angelmondragon/medcart-backend/internal/products"
	"github.com/angelmondragon/medcart-backend/internal/refills"
	"github.com/angelmondragon/medcart-backend/internal/subscriptions"
	"github.com/angelmondragon/medcart-backend/pkg/config"
	"github.com/angelmondragon/medcart-backend/pkg/db"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
	"github.com/angelmondragon/medcart-backend/pkg/metrics"
	"github.com/angelmondragon/medcart-backend/pkg/migrate"
	"github.com/angelmondragon/medcart-backend/pkg/outbox"
	"github.com/angelmondragon/medcart-backend/pkg/pricing"
	"github.com/angelmondragon/medcart-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	metricsAddr := flag.String("metrics-addr", ":9102", "address for the /metrics listener; empty disables it")
	only := flag.String("jobs", "", "comma-separated job names to run; empty runs all")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
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

	registry, err := buildJobs(cfg, logg, dbClient)
	if err == nil && *only != "" {
		registry, err = registry.Only(strings.Split(*only, ",")...)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, "cron-worker:"+cfg.App.Env, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceName})

	if *once {
		report, err := service.RunOnce(ctx)
		if err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		if !report.OK() && !report.Skipped {
			os.Exit(1)
		}
		return
	}

	if *metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, *metricsAddr); err != nil {
				logg.Error(ctx, "metrics listener stopped", err)
			}
		}()
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	policy := pricing.FromConfig(cfg.Commerce)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	stock := product.NewStock()
	commerce := metrics.NewCommerceMetrics(prometheus.DefaultRegisterer)

	subs, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:          subscriptions.NewRepository(conn),
		Tx:            dbClient,
		Stock:         stock,
		Outbox:        emitter,
		Logger:        logg,
		Lookahead:     cfg.Commerce.SubscriptionLookahead,
		MaxRejections: cfg.Commerce.SubscriptionMaxRejections,
	})
	if err != nil {
		return nil, err
	}
	cartSvc, err := cart.NewService(cart.ServiceParams{Repo: cart.NewRepository(conn), Tx: dbClient, Policy: policy})
	if err != nil {
		return nil, err
	}
	refillRepo := refills.NewRepository(conn)
	refillSvc, err := refills.NewService(refills.ServiceParams{Repo: refillRepo, IntervalDays: cfg.Commerce.RefillIntervalDays})
	if err != nil {
		return nil, err
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      dbClient,
		Cart:    cartSvc,
		Stock:   stock,
		Refills: refillSvc,
		Outbox:  emitter,
		Metrics: commerce,
		Policy:  policy,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}
	alertSvc, err := alerts.NewService(alerts.ServiceParams{
		Repo:              alerts.NewRepository(conn),
		Tx:                dbClient,
		Logger:            logg,
		ExpiryWarningDays: cfg.Commerce.ExpiryWarningDays,
	})
	if err != nil {
		return nil, err
	}

	delivery, err := cron.NewSubscriptionDeliveryJob(cron.SubscriptionDeliveryJobParams{
		Logger:        logg,
		DB:            dbClient,
		Subscriptions: subs,
		Orders:        orderSvc,
		Outbox:        emitter,
		Metrics:       commerce,
	})
	if err != nil {
		return nil, err
	}
	alertJob, err := cron.NewInventoryAlertsJob(alertSvc)
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(conn),
	})
	if err != nil {
		return nil, err
	}
	refillCleanup, err := cron.NewRefillCleanupJob(cron.RefillCleanupJobParams{Logger: logg, Repository: refillRepo})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(delivery, alertJob, retention, refillCleanup)
}

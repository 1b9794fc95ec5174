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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/medcart-backend/api/routes"
	"github.com/angelmondragon/medcart-backend/internal/alerts"
	"github.com/angelmondragon/medcart-backend/internal/auth"
	"github.com/angelmondragon/medcart-backend/internal/cart"
	"github.com/angelmondragon/medcart-backend/internal/orders"
	product "github.com/angelmondragon/medcart-backend/internal/products"
	"github.com/angelmondragon/medcart-backend/internal/refills"
	"github.com/angelmondragon/medcart-backend/internal/reviews"
	"github.com/angelmondragon/medcart-backend/internal/stats"
	"github.com/angelmondragon/medcart-backend/internal/subscriptions"
	"github.com/angelmondragon/medcart-backend/internal/users"
	"github.com/angelmondragon/medcart-backend/internal/wishlist"
	"github.com/angelmondragon/medcart-backend/pkg/auth/session"
	"github.com/angelmondragon/medcart-backend/pkg/config"
	"github.com/angelmondragon/medcart-backend/pkg/db"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
	"github.com/angelmondragon/medcart-backend/pkg/metrics"
	"github.com/angelmondragon/medcart-backend/pkg/migrate"
	"github.com/angelmondragon/medcart-backend/pkg/outbox"
	"github.com/angelmondragon/medcart-backend/pkg/pricing"
	"github.com/angelmondragon/medcart-backend/pkg/redis"
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	deps, err := buildDeps(cfg, logg, dbClient, sessionManager)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.Redis = redisClient
	deps.DB = dbClient
	deps.Sessions = sessionManager
	deps.Metrics = promhttp.Handler()
	deps.HTTPMetrics = metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildDeps(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, sessionManager *session.Manager) (routes.Deps, error) {
	conn := dbClient.DB()
	policy := pricing.FromConfig(cfg.Commerce)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	stock := product.NewStock()
	productRepo := product.NewRepository(conn)
	commerce := metrics.NewCommerceMetrics(prometheus.DefaultRegisterer)
	deps := routes.Deps{Config: cfg, Logger: logg}

	var err error
	userRepo := users.NewRepository(conn)
	if deps.Users, err = users.NewService(users.ServiceParams{
		Repo:     userRepo,
		Sessions: sessionManager,
		Logger:   logg,
	}); err != nil {
		return deps, err
	}
	if deps.Auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	}); err != nil {
		return deps, err
	}
	if deps.Products, err = product.NewService(product.ServiceParams{Repo: productRepo}); err != nil {
		return deps, err
	}
	if deps.Cart, err = cart.NewService(cart.ServiceParams{Repo: cart.NewRepository(conn), Tx: dbClient, Policy: policy}); err != nil {
		return deps, err
	}
	if deps.Refills, err = refills.NewService(refills.ServiceParams{
		Repo:         refills.NewRepository(conn),
		IntervalDays: cfg.Commerce.RefillIntervalDays,
	}); err != nil {
		return deps, err
	}
	if deps.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      dbClient,
		Cart:    deps.Cart,
		Stock:   stock,
		Refills: deps.Refills,
		Outbox:  emitter,
		Metrics: commerce,
		Policy:  policy,
		Logger:  logg,
	}); err != nil {
		return deps, err
	}
	if deps.Subscriptions, err = subscriptions.NewService(subscriptions.ServiceParams{
		Repo:          subscriptions.NewRepository(conn),
		Tx:            dbClient,
		Stock:         stock,
		Outbox:        emitter,
		Logger:        logg,
		Lookahead:     cfg.Commerce.SubscriptionLookahead,
		MaxRejections: cfg.Commerce.SubscriptionMaxRejections,
	}); err != nil {
		return deps, err
	}
	if deps.Reviews, err = reviews.NewService(reviews.ServiceParams{
		Repo:      reviews.NewRepository(conn),
		Tx:        dbClient,
		Purchases: deps.Orders,
	}); err != nil {
		return deps, err
	}
	if deps.Wishlist, err = wishlist.NewService(wishlist.ServiceParams{
		WishlistRepo: wishlist.NewRepository(conn),
		ProductRepo:  productRepo,
		Cart:         deps.Cart,
		Tx:           dbClient,
	}); err != nil {
		return deps, err
	}
	if deps.Alerts, err = alerts.NewService(alerts.ServiceParams{
		Repo:              alerts.NewRepository(conn),
		Tx:                dbClient,
		Logger:            logg,
		ExpiryWarningDays: cfg.Commerce.ExpiryWarningDays,
	}); err != nil {
		return deps, err
	}
	if deps.Stats, err = stats.NewService(stats.ServiceParams{
		Repo:             stats.NewRepository(conn),
		ExpiryWindowDays: cfg.Commerce.ExpiryWarningDays,
	}); err != nil {
		return deps, err
	}
	return deps, nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"polis/internal/adapters/callback"
	"polis/internal/adapters/carrier"
	"polis/internal/adapters/identity"
	"polis/internal/adapters/lead"
	"polis/internal/adapters/ledger"
	"polis/internal/adapters/offer"
	"polis/internal/adapters/storage"
	"polis/internal/platform/config"
	"polis/internal/platform/httpserver"
	"polis/internal/platform/kafka"
	"polis/internal/platform/lock"
	"polis/internal/platform/logger"
	"polis/internal/platform/metrics"
	"polis/internal/platform/middleware"
	"polis/internal/platform/redis"
	"polis/internal/policy/handler"
	pmetrics "polis/internal/policy/metrics"
	"polis/internal/policy/requireddata"
	"polis/internal/policy/service"
	"polis/internal/policy/store"
	"polis/pkg/platform/httputil"
	"polis/pkg/platform/middleware/metadata"
	"polis/pkg/platform/middleware/requesttime"
)

// main wires the dependencies and keeps the server lifecycle small. Business
// logic lives in internal/policy.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Error("postgres unreachable", "error", err)
		os.Exit(1)
	}

	var locker service.Locker = lock.NewLocal()
	healthChecks := []func(context.Context) error{pool.Ping}
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = lock.NewRedis(redisClient.Client, cfg.Redis.LockTTL)
		healthChecks = append(healthChecks, redisClient.Health)
	} else {
		log.Warn("redis not configured, using in-process locks")
	}

	publisher, err := kafka.NewPublisher(cfg.Kafka)
	if err != nil {
		log.Error("failed to create kafka publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	identityAdapter := identity.New(cfg.Gateways.Identity, nil)
	requiredData := requireddata.New(identityAdapter, identityAdapter, identityAdapter,
		requireddata.WithLogger(log))

	svc := service.New(
		store.NewPostgres(pool),
		locker,
		lead.New(cfg.Gateways.Lead, nil),
		offer.New(cfg.Gateways.Offer, nil),
		carrier.New(cfg.Gateways.Carrier, nil),
		ledger.New(cfg.Gateways.Accounting, nil),
		storage.New(cfg.Storage.BucketURL, cfg.Storage.PublicURL, nil),
		publisher,
		requiredData,
		callback.New(),
		service.WithLogger(log),
		service.WithMetrics(pmetrics.New()),
	)

	consumer, err := kafka.NewConsumer(cfg.Kafka, svc, log)
	if err != nil {
		log.Error("failed to create kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("event consumer stopped", "error", err)
		}
	}()

	httpMetrics := metrics.NewHTTP()
	router := chi.NewRouter()
	router.Use(
		metadata.ClientMetadata,
		middleware.RequestID,
		middleware.Channel,
		requesttime.Middleware,
		httpMetrics.Middleware,
		middleware.AccessLog(log),
	)
	handler.New(svc, log).Register(router)
	router.Get("/healthz", httputil.Healthz(healthChecks...))
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.HTTP.Addr, router)

	log.Info("starting polis", "addr", cfg.HTTP.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

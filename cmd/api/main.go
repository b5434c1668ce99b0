package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/greenify/plant-store/internal/api"
	"github.com/greenify/plant-store/internal/api/middleware"
	"github.com/greenify/plant-store/internal/auth"
	"github.com/greenify/plant-store/internal/config"
	"github.com/greenify/plant-store/internal/domain/cart"
	"github.com/greenify/plant-store/internal/domain/catalog"
	"github.com/greenify/plant-store/internal/domain/order"
	"github.com/greenify/plant-store/internal/domain/rating"
	"github.com/greenify/plant-store/internal/domain/user"
	"github.com/greenify/plant-store/internal/events"
	"github.com/greenify/plant-store/internal/infrastructure/cache"
	"github.com/greenify/plant-store/internal/infrastructure/dynamo"
	"github.com/greenify/plant-store/internal/infrastructure/kafka"
	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/infrastructure/store/memory"
	"github.com/greenify/plant-store/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateAPI()
	}
	if err != nil {
		log.Fatalf("[API] invalid configuration: %v", err)
	}

	logg, err := logger.New(logger.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		log.Fatalf("[API] failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Fatal("api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logg *zap.Logger) error {
	st, db, err := openStore(ctx, cfg, logg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// Catalog, optionally behind the Redis cache
	catalogSvc := catalog.NewService(st, logg)
	var (
		plants      catalog.Catalog     = catalogSvc
		invalidator catalog.Invalidator = catalog.NopInvalidator{}
		rdb         *redis.Client
	)
	if cfg.Redis.Addr != "" {
		rdb, err = cache.Connect(ctx, cache.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()

		cached := catalog.NewCachedService(catalogSvc, rdb, cfg.Redis.TTL, logg)
		plants, invalidator = cached, cached
		logg.Info("catalog cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	// Event publishing is best-effort; without a transport events are dropped
	var publisher events.Publisher = events.NopPublisher{}
	switch {
	case cfg.DynamoEnabled():
		client, err := dynamo.NewClient(ctx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
		if err != nil {
			return err
		}
		publisher = events.NewBreakerPublisher("dynamodb", dynamo.NewEventWriter(client, cfg.DynamoDB.EventsTable), logg)
		logg.Info("publishing events", zap.String("table", cfg.DynamoDB.EventsTable))
	case cfg.KafkaEnabled():
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = events.NewBreakerPublisher("kafka", producer, logg)
		logg.Info("publishing events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var scheduler rating.Scheduler
	switch cfg.Recompute.Mode {
	case config.RecomputeEvents:
		scheduler = rating.NewEventScheduler(publisher)
	default:
		worker := rating.NewWorker(rating.NewRecomputer(st, invalidator, logg), rating.WorkerConfig{
			Workers:     cfg.Recompute.Workers,
			QueueSize:   cfg.Recompute.QueueSize,
			MaxAttempts: cfg.Recompute.MaxAttempts,
			Backoff:     cfg.Recompute.Backoff,
		}, logg)
		worker.Start(ctx)
		defer worker.Stop()
		scheduler = worker
	}
	logg.Info("rating recompute", zap.String("mode", cfg.Recompute.Mode))

	users := user.NewService(st, logg)
	if cfg.Auth.AdminEmail != "" {
		if _, err := users.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return err
		}
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	handlers := api.NewHandlers(api.Services{
		Catalog: plants,
		Carts:   cart.NewService(st, logg),
		Orders:  order.NewService(st, publisher, invalidator, logg),
		Ratings: rating.NewService(st, scheduler, logg),
		Users:   users,
	}, jwtService, healthCheck(db), cfg.Env == "prod", logg)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handlers, logg, middleware.NewMetrics()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("server started", zap.String("addr", cfg.HTTP.Addr), zap.String("store", cfg.Store.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, logg *zap.Logger) (store.Store, *sql.DB, error) {
	if cfg.Store.Driver == config.StoreMemory {
		logg.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), nil, nil
	}

	db, err := store.ConnectPostgres(cfg.Store.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	logg.Info("connected to PostgreSQL")
	return store.NewPostgresStore(db, logg), db, nil
}

// healthCheck pings the database. Redis is left out: the cache is optional.
func healthCheck(db *sql.DB) api.HealthCheck {
	return func(ctx context.Context) error {
		if db == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/greenify/plant-store/internal/config"
	"github.com/greenify/plant-store/internal/domain/catalog"
	"github.com/greenify/plant-store/internal/domain/rating"
	"github.com/greenify/plant-store/internal/infrastructure/cache"
	"github.com/greenify/plant-store/internal/infrastructure/kafka"
	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/logger"
	"go.uber.org/zap"
)

// recomputer consumes RatingSubmitted events and refreshes plant ratings.
// It is the out-of-process counterpart of RATING_RECOMPUTE=kafka.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Recomputer] invalid configuration: %v", err)
	}
	if !cfg.KafkaEnabled() {
		log.Fatal("[Recomputer] KAFKA_BROKERS is required")
	}

	logg, err := logger.New(logger.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		log.Fatalf("[Recomputer] failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.ConnectPostgres(cfg.Store.DatabaseURL)
	if err != nil {
		logg.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	st := store.NewPostgresStore(db, logg)

	// stale cached ratings are dropped when Redis is configured
	var invalidator catalog.Invalidator = catalog.NopInvalidator{}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cache.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			logg.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		invalidator = catalog.NewCachedService(catalog.NewService(st, logg), rdb, cfg.Redis.TTL, logg)
	}

	recomputer := rating.NewRecomputer(st, invalidator, logg)

	groupID := cfg.Kafka.GroupID + "-rating-recomputer"
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, groupID, logg)
	defer consumer.Close()

	logg.Info("recomputer started",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", groupID))

	if err := consumer.Consume(ctx, recomputer.HandleMessage); err != nil && ctx.Err() == nil {
		logg.Error("consumer stopped", zap.Error(err))
	}
	logg.Info("recomputer stopped")
}

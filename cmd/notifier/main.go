package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/greenify/plant-store/internal/config"
	"github.com/greenify/plant-store/internal/email"
	"github.com/greenify/plant-store/internal/infrastructure/kafka"
	"github.com/greenify/plant-store/internal/logger"
	"github.com/greenify/plant-store/internal/notification"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Notifier] invalid configuration: %v", err)
	}
	if !cfg.KafkaEnabled() {
		log.Fatal("[Notifier] KAFKA_BROKERS is required")
	}

	logg, err := logger.New(logger.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		log.Fatalf("[Notifier] failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Dedicated consumer group for email notifications
	groupID := cfg.Kafka.GroupID + "-email-notifier"

	emailSvc := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From)
	handler := notification.NewHandler(emailSvc, logg)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, groupID, logg)
	defer consumer.Close()

	logg.Info("notifier started",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", groupID),
		zap.String("smtp", cfg.SMTP.Host+":"+cfg.SMTP.Port))

	if err := consumer.Consume(ctx, handler.HandleMessage); err != nil && ctx.Err() == nil {
		logg.Error("consumer stopped", zap.Error(err))
	}
	logg.Info("notifier stopped")
}

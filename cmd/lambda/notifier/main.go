package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/greenify/plant-store/internal/config"
	"github.com/greenify/plant-store/internal/email"
	"github.com/greenify/plant-store/internal/infrastructure/kinesis"
	"github.com/greenify/plant-store/internal/logger"
	"github.com/greenify/plant-store/internal/notification"
	"go.uber.org/zap"
)

var (
	notificationHandler *notification.Handler
	logg                *zap.Logger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Lambda Notifier] invalid configuration: %v", err)
	}

	logg, err = logger.New(logger.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		log.Fatalf("[Lambda Notifier] failed to build logger: %v", err)
	}

	emailSvc := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From)
	notificationHandler = notification.NewHandler(emailSvc, logg)

	logg.Info("lambda notifier initialized", zap.String("smtp", cfg.SMTP.Host+":"+cfg.SMTP.Port))
}

func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	return kinesis.ProcessBatch(ctx, kinesisEvent, notificationHandler.HandleMessage, logg), nil
}

func main() {
	lambda.Start(handler)
}

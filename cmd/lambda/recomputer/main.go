package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/greenify/plant-store/internal/config"
	"github.com/greenify/plant-store/internal/domain/catalog"
	"github.com/greenify/plant-store/internal/domain/rating"
	"github.com/greenify/plant-store/internal/infrastructure/kinesis"
	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/logger"
	"go.uber.org/zap"
)

var (
	recomputer *rating.Recomputer
	logg       *zap.Logger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Lambda Recomputer] invalid configuration: %v", err)
	}

	logg, err = logger.New(logger.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		log.Fatalf("[Lambda Recomputer] failed to build logger: %v", err)
	}

	db, err := store.ConnectPostgres(cfg.Store.DatabaseURL)
	if err != nil {
		logg.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}

	recomputer = rating.NewRecomputer(store.NewPostgresStore(db, logg), catalog.NopInvalidator{}, logg)
	logg.Info("lambda recomputer initialized")
}

func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	return kinesis.ProcessBatch(ctx, kinesisEvent, recomputer.HandleMessage, logg), nil
}

func main() {
	lambda.Start(handler)
}

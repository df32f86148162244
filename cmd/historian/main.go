// cmd/historian/main.go pops committed moves from the Redis queue and
// persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/config"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/historian"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb, err := cache.Connect(ctx, redisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer rdb.Close()

	svc := historian.New(cache.NewMoveQueue(rdb, cfg.QueueName), db, historian.Options{
		BatchSize:         cfg.BatchSize,
		FlushInterval:     cfg.FlushInterval,
		InactivityTimeout: cfg.InactivityTimeout,
	}, logger.WithField("service", "historian"))

	if err := svc.Run(ctx); err != nil {
		logger.WithError(err).Error("historian stopped with error")
	}
}

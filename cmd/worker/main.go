// Package main runs the background notification worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kiezrad/backend/config"
	"github.com/kiezrad/backend/internal/emaillogs"
	"github.com/kiezrad/backend/internal/mailer"
	"github.com/kiezrad/backend/internal/worker"
	"github.com/kiezrad/backend/pkg/database"
	"github.com/kiezrad/backend/pkg/queue"
	"github.com/kiezrad/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	smtpMailer := mailer.New(
		cfg.Email.SMTPHost, cfg.Email.SMTPPort,
		cfg.Email.SMTPUser, cfg.Email.SMTPPass,
		cfg.Email.FromAddress, cfg.Email.FromName,
		cfg.Email.SendTimeout,
	)

	logsRepo := emaillogs.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewNotificationProcessor(jobQueue, smtpMailer, logsRepo, cfg.Email.SendTimeout, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

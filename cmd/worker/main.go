// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"collection-service/internal/app"
	"collection-service/internal/config"
	"collection-service/internal/logging"
	"collection-service/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info").WithError(err).Fatal("config")
	}
	log := logging.New(cfg.LogLevel)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup")
	}
	defer a.Close()

	if a.Queue == nil {
		log.Fatal("missing env: REDIS_ADDR")
	}

	// returns requests claimed by crashed workers to their queue
	go worker.Reap(ctx, a.Queue, 30*time.Second, cfg.DocumentStaleAfter, log)

	processor := worker.NewProcessor(a.Documents, a.Files, a.Audit, log)
	pool := worker.NewPool(a.Queue, processor, cfg.Workers, log)

	log.WithFields(logrus.Fields{
		"workers":        cfg.Workers,
		"redis_addr":     cfg.RedisAddr,
		"queue_key":      cfg.RedisQueueKey,
		"processing_key": cfg.RedisProcessingKey,
		"postgres_dsn":   cfg.RedactedDSN(),
	}).Info("worker started")

	pool.Run(ctx)

	log.Info("worker stopped")
}

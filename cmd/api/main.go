// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"collection-service/internal/app"
	"collection-service/internal/config"
	"collection-service/internal/logging"
	httptransport "collection-service/internal/transport/http"
)

// @title Collection Service API
// @version 1.0
// @description IT asset collection jobs: lifecycle, item ledger, audit log and compliance documents.
// @BasePath /
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

	h := httptransport.NewHandler(httptransport.HandlerDeps{
		Jobs:       a.Jobs,
		Ledger:     a.Ledger,
		Audit:      a.Audit,
		Compliance: a.Compliance,
		Documents:  a.Documents,
		Signatures: a.Signatures,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.Routes(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":         cfg.HTTPAddr,
		"storage":      cfg.Storage,
		"postgres_dsn": cfg.RedactedDSN(),
	}).Info("api started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http")
	}
	log.Info("api stopped")
}

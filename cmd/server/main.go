package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/arnavshah/homestay-api/pkg/config"
	"github.com/arnavshah/homestay-api/pkg/database"
	"github.com/arnavshah/homestay-api/pkg/handlers"
	"github.com/arnavshah/homestay-api/pkg/logger"
	"github.com/arnavshah/homestay-api/pkg/metrics"
	"github.com/arnavshah/homestay-api/pkg/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}

	h := handlers.New(cfg, db, logr, metrics.New())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	created, err := h.Auth.EnsureAdminExists(ctx, db, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	if err != nil {
		logr.Fatal("seed admin account", zap.Error(err))
	}
	if created {
		logr.Warn("default admin account created", zap.String("username", cfg.Auth.AdminUsername))
	}

	go server.PruneSessions(ctx, h, cfg.Sessions.TTL, cfg.Sessions.PruneInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.New(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Warn("graceful shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Fatal("server failed", zap.Error(err))
	}
}

package handler

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/arnavshah/homestay-api/pkg/config"
	"github.com/arnavshah/homestay-api/pkg/database"
	"github.com/arnavshah/homestay-api/pkg/handlers"
	"github.com/arnavshah/homestay-api/pkg/logger"
	"github.com/arnavshah/homestay-api/pkg/metrics"
	"github.com/arnavshah/homestay-api/pkg/server"
)

var app http.Handler

func init() {
	cfg, err := config.Load(".env", "../.env")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}

	h := handlers.New(cfg, db, logr, metrics.New())
	if _, err := h.Auth.EnsureAdminExists(context.Background(), db, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		logr.Error("seed admin account", zap.Error(err))
	}

	// Serverless instances are short lived, so sessions are not pruned here.
	app = server.New(h)
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, r *http.Request) {
	app.ServeHTTP(w, r)
}

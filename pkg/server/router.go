package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/arnavshah/homestay-api/pkg/config"
	"github.com/arnavshah/homestay-api/pkg/handlers"
	"github.com/arnavshah/homestay-api/pkg/logger"
)

// NewRouter registers every route of the service on a fresh gin engine
func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinMiddleware(h.Logger), gin.Recovery(), h.Metrics.Middleware())

	r.GET("/", h.Info)
	r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	r.POST("/admin/login", h.Login)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
	}

	// Coordinator Endpoints
	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware())
	{
		api.POST("/roster", h.ImportRoster)
		api.POST("/roster/csv", h.ImportRosterCSV)
		api.POST("/validate", h.ValidateRoster)
		api.GET("/usage", h.GetMyUsage)

		api.GET("/assignments", h.ListAssignments)
		api.DELETE("/assignments/:participantId", h.RemoveAssignment)
		api.PUT("/participants/:id/payment", h.UpdatePaymentStatus)
		api.DELETE("/participants/:id", h.DeleteParticipant)
		api.DELETE("/host-families/:id", h.DeleteHostFamily)

		api.POST("/sessions", h.OpenSession)
		api.GET("/sessions/:id", h.GetSession)
		api.DELETE("/sessions/:id", h.CloseSession)
		api.POST("/sessions/:id/assignments", h.ProposeAssignment)
		api.DELETE("/sessions/:id/assignments/:participantId", h.WithdrawAssignment)
		api.POST("/sessions/:id/auto-assign", h.AutoAssign)
		api.POST("/sessions/:id/commit", h.Commit)
		api.POST("/sessions/:id/discard", h.Discard)
		api.GET("/sessions/:id/export", h.Export)
	}

	return r
}

// WithCORS wraps the router with the configured CORS policy. An empty
// origin list allows every origin without credentials.
func WithCORS(cfg config.CORSConfig, next http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	credentials := len(origins) > 0
	if !credentials {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: credentials,
	}).Handler(next)
}

// New builds the full HTTP handler of the service
func New(h *handlers.Handler) http.Handler {
	if h.Config.GinMode != "" {
		gin.SetMode(h.Config.GinMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return WithCORS(h.Config.CORS, NewRouter(h))
}

// PruneSessions closes idle sessions every interval until ctx is done
func PruneSessions(ctx context.Context, h *handlers.Handler, ttl, interval time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.Sessions.Prune(ttl); n > 0 {
				h.Logger.Info("idle sessions closed", zap.Int("count", n))
			}
			h.Metrics.SetSessionsOpen(h.Sessions.Len())
		}
	}
}

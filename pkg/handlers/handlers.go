package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnavshah/homestay-api/pkg/assigner"
	"github.com/arnavshah/homestay-api/pkg/auth"
	"github.com/arnavshah/homestay-api/pkg/config"
	"github.com/arnavshah/homestay-api/pkg/database"
	appErrors "github.com/arnavshah/homestay-api/pkg/errors"
	"github.com/arnavshah/homestay-api/pkg/metrics"
	"github.com/arnavshah/homestay-api/pkg/models"
	"github.com/arnavshah/homestay-api/pkg/response"
)

const (
	ctxAPIKey   = "apiKey"
	ctxUserID   = "userID"
	ctxUsername = "username"

	usageDateLayout = "2006-01-02"
)

// RosterStore is the persistence used by the roster, session and record routes
type RosterStore interface {
	ImportRoster(ctx context.Context, participants []models.Participant, families []models.HostFamily) error
	LoadRoster(ctx context.Context) ([]models.Participant, []models.HostFamily, error)
	SaveAssignments(ctx context.Context, batch []models.Assignment) error
	ListAssignments(ctx context.Context) ([]models.Assignment, error)
	RemoveAssignment(ctx context.Context, participantID string) (models.Assignment, error)
	UpdatePaymentStatus(ctx context.Context, participantID string, status models.PaymentStatus) error
	DeleteParticipant(ctx context.Context, participantID string) error
	DeleteHostFamily(ctx context.Context, familyID string) error
}

// Handler contains dependencies for the route handlers
type Handler struct {
	DB       *gorm.DB
	Store    RosterStore
	Auth     *auth.Authenticator
	Sessions *assigner.Registry
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
	Config   *config.Config
}

// New wires a Handler around an open database
func New(cfg *config.Config, db *gorm.DB, log *zap.Logger, rec *metrics.Recorder) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		DB:       db,
		Store:    database.NewStore(db),
		Auth:     auth.New(cfg.Auth),
		Sessions: assigner.NewRegistry(),
		Metrics:  rec,
		Logger:   log,
		Config:   cfg,
	}
}

// Info describes the service
func (h *Handler) Info(c *gin.Context) {
	response.OK(c, gin.H{
		"message": "Homestay Assignment API",
		"version": "1.0.0",
	})
}

func bearerToken(c *gin.Context) string {
	token := c.GetHeader("Authorization")
	return strings.TrimPrefix(token, "Bearer ")
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authorization header required"))
			return
		}

		claims, err := h.Auth.VerifyToken(token)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token"))
			return
		}

		c.Set(ctxUsername, claims.Username)
		c.Next()
	}
}

// APIKeyMiddleware verifies the HMAC API key for coordinator routes and
// enforces the key's daily request limit
func (h *Handler) APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bearerToken(c)
		if key == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "API key required"))
			return
		}

		userID, err := h.Auth.VerifyHMACKey(key)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid API key signature"))
			return
		}

		ctx := c.Request.Context()

		apiKey, err := h.loadKey(ctx, key, userID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if apiKey.DeletedAt.Valid {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "API key revoked"))
			return
		}

		admitted, err := h.countRequest(ctx, apiKey)
		if err != nil {
			response.Error(c, fmt.Errorf("record api usage: %w", err))
			return
		}
		if !admitted {
			response.Error(c, appErrors.ErrRateLimited)
			return
		}

		now := time.Now()
		if err := h.DB.WithContext(ctx).Model(apiKey).UpdateColumn("last_used", &now).Error; err != nil {
			h.Logger.Warn("update last_used failed", zap.Uint("key_id", apiKey.ID), zap.Error(err))
		}

		c.Set(ctxAPIKey, apiKey)
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// loadKey finds the record of a validly signed key, revoked ones included.
// Keys signed offline are registered on first use so usage can be tracked.
func (h *Handler) loadKey(ctx context.Context, key, userID string) (*database.APIKey, error) {
	find := func() (*database.APIKey, error) {
		var apiKey database.APIKey
		err := h.DB.WithContext(ctx).Unscoped().Where(&database.APIKey{Key: key}).Limit(1).Find(&apiKey).Error
		if err != nil {
			return nil, fmt.Errorf("load api key: %w", err)
		}
		return &apiKey, nil
	}

	apiKey, err := find()
	if err != nil || apiKey.ID != 0 {
		return apiKey, err
	}

	// A concurrent first request may register the key in between.
	err = h.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&database.APIKey{
		Key:        key,
		Name:       userID,
		KeyPreview: auth.KeyPreview(key),
		RateLimit:  h.Config.Auth.DefaultRateLimit,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("register api key: %w", err)
	}
	return find()
}

// countRequest adds one request to today's usage row of the key unless the
// row already reached the key's limit. The check and the increment are a
// single statement so concurrent requests cannot both take the last slot.
func (h *Handler) countRequest(ctx context.Context, apiKey *database.APIKey) (bool, error) {
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count": gorm.Expr("api_usages.request_count + 1"),
		}),
	}
	if apiKey.RateLimit > 0 {
		onConflict.Where = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "api_usages.request_count < ?", Vars: []interface{}{apiKey.RateLimit}},
		}}
	}

	res := h.DB.WithContext(ctx).Clauses(onConflict).Create(&database.APIUsage{
		KeyID:        apiKey.ID,
		Date:         today(),
		RequestCount: 1,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecordUsage adds roster sizes to today's usage row of the calling key
func (h *Handler) RecordUsage(c *gin.Context, familyCount, participantCount int) {
	apiKeyRaw, exists := c.Get(ctxAPIKey)
	if !exists {
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	// Single-query upsert, supported by both Postgres and SQLite.
	err := h.DB.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_families":     gorm.Expr("api_usages.total_families + ?", familyCount),
			"total_participants": gorm.Expr("api_usages.total_participants + ?", participantCount),
		}),
	}).Create(&database.APIUsage{
		KeyID:             apiKey.ID,
		Date:              today(),
		TotalFamilies:     familyCount,
		TotalParticipants: participantCount,
	}).Error
	if err != nil {
		h.Logger.Warn("record usage failed", zap.Uint("key_id", apiKey.ID), zap.Error(err))
	}
}

func today() string {
	return time.Now().Format(usageDateLayout)
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	var user database.MasterUser
	if err := h.DB.WithContext(c.Request.Context()).Where("username = ?", req.Username).First(&user).Error; err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid credentials"))
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid credentials"))
		return
	}

	token, err := h.Auth.CreateToken(user.Username)
	if err != nil {
		response.Error(c, fmt.Errorf("create token: %w", err))
		return
	}

	response.OK(c, gin.H{"access_token": token, "token_type": "bearer"})
}

// GenerateKey creates a new API key using the HMAC strategy
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		RateLimit int    `json:"rate_limit" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if req.RateLimit == 0 {
		req.RateLimit = h.Config.Auth.DefaultRateLimit
	}

	key := h.Auth.GenerateHMACKey(req.Name)

	// Keys are derived from the name, so a name is usable once.
	var existing int64
	err := h.DB.WithContext(c.Request.Context()).Unscoped().
		Model(&database.APIKey{}).Where(&database.APIKey{Key: key}).Count(&existing).Error
	if err != nil {
		response.Error(c, fmt.Errorf("check key name: %w", err))
		return
	}
	if existing > 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("a key named %q already exists or was revoked", req.Name)))
		return
	}

	apiKey := database.APIKey{
		Key:        key,
		Name:       req.Name,
		KeyPreview: auth.KeyPreview(key),
		RateLimit:  req.RateLimit,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&apiKey).Error; err != nil {
		response.Error(c, fmt.Errorf("create key record: %w", err))
		return
	}

	h.Logger.Info("api key generated", zap.String("name", req.Name), zap.String("by", c.GetString(ctxUsername)))
	response.Created(c, gin.H{
		"id":   apiKey.ID,
		"name": req.Name,
		"key":  key,
	})
}

// ListKeys returns all API keys
func (h *Handler) ListKeys(c *gin.Context) {
	var keys []database.APIKey
	if err := h.DB.WithContext(c.Request.Context()).Order("id").Find(&keys).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"keys": keys})
}

// RevokeKey soft deletes an API key. The signature stays valid, so the row is
// kept to reject the key on later requests.
func (h *Handler) RevokeKey(c *gin.Context) {
	res := h.DB.WithContext(c.Request.Context()).Delete(&database.APIKey{}, "id = ?", c.Param("id"))
	if res.Error != nil {
		response.Error(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "api key not found"))
		return
	}
	response.OK(c, gin.H{"message": "Key revoked"})
}

// UpdateKeyLimit updates the rate limit for a key
func (h *Handler) UpdateKeyLimit(c *gin.Context) {
	var req struct {
		RateLimit int `json:"rate_limit" form:"rate_limit"`
	}

	// JSON body first, then the query string.
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "rate_limit is required"))
			return
		}
	}
	if req.RateLimit <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rate limit"))
		return
	}

	res := h.DB.WithContext(c.Request.Context()).
		Model(&database.APIKey{}).
		Where("id = ?", c.Param("id")).
		Update("rate_limit", req.RateLimit)
	if res.Error != nil {
		response.Error(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "api key not found"))
		return
	}
	response.OK(c, gin.H{"message": "Rate limit updated successfully"})
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

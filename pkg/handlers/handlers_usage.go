package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/arnavshah/homestay-api/pkg/database"
	appErrors "github.com/arnavshah/homestay-api/pkg/errors"
	"github.com/arnavshah/homestay-api/pkg/response"
)

const usageHistoryDays = 30

// GetUsage returns usage stats for a key
func (h *Handler) GetUsage(c *gin.Context) {
	var apiKey database.APIKey
	if err := h.DB.WithContext(c.Request.Context()).First(&apiKey, "id = ?", c.Param("id")).Error; err != nil {
		if isNotFound(err) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "api key not found"))
			return
		}
		response.Error(c, err)
		return
	}
	h.writeUsage(c, &apiKey)
}

// GetMyUsage returns usage stats for the authenticated API key
func (h *Handler) GetMyUsage(c *gin.Context) {
	apiKeyRaw, exists := c.Get(ctxAPIKey)
	if !exists {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "API key context missing"))
		return
	}
	h.writeUsage(c, apiKeyRaw.(*database.APIKey))
}

func (h *Handler) writeUsage(c *gin.Context, apiKey *database.APIKey) {
	var usage []database.APIUsage
	err := h.DB.WithContext(c.Request.Context()).
		Where("key_id = ?", apiKey.ID).
		Order("date desc").
		Limit(usageHistoryDays).
		Find(&usage).Error
	if err != nil {
		response.Error(c, err)
		return
	}

	var totalRequests, totalFamilies, totalParticipants int64
	for _, u := range usage {
		totalRequests += int64(u.RequestCount)
		totalFamilies += int64(u.TotalFamilies)
		totalParticipants += int64(u.TotalParticipants)
	}

	response.OK(c, gin.H{
		"key_name":      apiKey.Name,
		"rate_limit":    apiKey.RateLimit,
		"usage_history": usage,
		"totals": gin.H{
			"requests":     totalRequests,
			"families":     totalFamilies,
			"participants": totalParticipants,
		},
	})
}

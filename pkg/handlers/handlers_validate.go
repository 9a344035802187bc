package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/homestay-api/pkg/models"
	"github.com/arnavshah/homestay-api/pkg/response"
)

// ValidateRoster checks a roster payload without storing it
func (h *Handler) ValidateRoster(c *gin.Context) {
	var input models.RosterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.JSON(c, http.StatusOK, gin.H{"valid": false, "errors": []string{err.Error()}})
		return
	}

	var problems []string
	if len(input.Participants) == 0 {
		problems = append(problems, "at least one participant is required")
	}
	if len(input.HostFamilies) == 0 {
		problems = append(problems, "at least one host family is required")
	}
	if err := models.ValidateRoster(input.Participants, input.HostFamilies); err != nil {
		problems = append(problems, strings.Split(err.Error(), "\n")...)
	}

	if len(problems) > 0 {
		response.OK(c, gin.H{"valid": false, "errors": problems})
		return
	}

	capacity, occupied := 0, 0
	for _, f := range input.HostFamilies {
		capacity += f.Capacity
		occupied += f.CurrentAssignments
	}

	response.OK(c, gin.H{
		"valid": true,
		"stats": gin.H{
			"participant_count":  len(input.Participants),
			"host_family_count":  len(input.HostFamilies),
			"available_capacity": capacity - occupied,
		},
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/arnavshah/homestay-api/pkg/errors"
	"github.com/arnavshah/homestay-api/pkg/models"
	"github.com/arnavshah/homestay-api/pkg/response"
)

// ListAssignments returns every committed assignment
func (h *Handler) ListAssignments(c *gin.Context) {
	assignments, err := h.Store.ListAssignments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"assignments": nonNil(assignments)})
}

// RemoveAssignment reverses a committed assignment. Sessions opened
// afterwards list the participant as unassigned again.
func (h *Handler) RemoveAssignment(c *gin.Context) {
	removed, err := h.Store.RemoveAssignment(c.Request.Context(), c.Param("participantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.Logger.Info("assignment reversed",
		zap.String("participant_id", removed.ParticipantID),
		zap.String("host_family_id", removed.HostFamilyID),
	)
	response.OK(c, removed)
}

// UpdatePaymentStatus records a participant's trip payment
func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	var req struct {
		PaymentStatus models.PaymentStatus `json:"payment_status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	id := c.Param("id")
	if err := h.Store.UpdatePaymentStatus(c.Request.Context(), id, req.PaymentStatus); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "payment_status": req.PaymentStatus})
}

// DeleteParticipant removes a participant that holds no committed assignment
func (h *Handler) DeleteParticipant(c *gin.Context) {
	if err := h.Store.DeleteParticipant(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteHostFamily removes a host family that hosts nobody
func (h *Handler) DeleteHostFamily(c *gin.Context) {
	if err := h.Store.DeleteHostFamily(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

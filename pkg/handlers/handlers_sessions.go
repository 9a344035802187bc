package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arnavshah/homestay-api/pkg/assigner"
	appErrors "github.com/arnavshah/homestay-api/pkg/errors"
	"github.com/arnavshah/homestay-api/pkg/models"
	"github.com/arnavshah/homestay-api/pkg/response"
	"github.com/arnavshah/homestay-api/pkg/roster"
)

const (
	sourceManual = "manual"
	sourceAuto   = "auto"
)

// OpenSession starts an editing session over the stored roster. Every stored
// participant without a committed assignment starts unassigned.
func (h *Handler) OpenSession(c *gin.Context) {
	participants, families, err := h.Store.LoadRoster(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	engine, err := assigner.New(participants, families, h.Store, assigner.WithLogger(h.Logger))
	if err != nil {
		response.Error(c, err)
		return
	}
	id := h.Sessions.Create(engine)
	h.Metrics.SetSessionsOpen(h.Sessions.Len())
	h.RecordUsage(c, len(families), len(participants))

	h.Logger.Info("session opened",
		zap.String("session_id", id),
		zap.Int("participants", len(participants)),
		zap.Int("host_families", len(families)),
	)
	response.Created(c, sessionState(id, engine.Snapshot("")))
}

// GetSession returns the state of a session; q filters participants and
// families by name
func (h *Handler) GetSession(c *gin.Context) {
	engine, ok := h.session(c)
	if !ok {
		return
	}
	response.OK(c, sessionState(c.Param("id"), engine.Snapshot(c.Query("q"))))
}

// ProposeAssignment places one participant with a host family
func (h *Handler) ProposeAssignment(c *gin.Context) {
	engine, ok := h.session(c)
	if !ok {
		return
	}

	var req models.Assignment
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	if err := engine.Propose(req.ParticipantID, req.HostFamilyID); err != nil {
		h.Metrics.Rejected(appErrors.FromError(err).Code)
		response.Error(c, err)
		return
	}
	h.Metrics.Proposed(sourceManual, 1)
	response.Created(c, sessionState(c.Param("id"), engine.Snapshot("")))
}

// WithdrawAssignment reverts the pending assignment of one participant
func (h *Handler) WithdrawAssignment(c *gin.Context) {
	engine, ok := h.session(c)
	if !ok {
		return
	}
	if err := engine.Withdraw(c.Param("participantId")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sessionState(c.Param("id"), engine.Snapshot("")))
}

// AutoAssign runs one greedy matching pass over the session
func (h *Handler) AutoAssign(c *gin.Context) {
	engine, ok := h.session(c)
	if !ok {
		return
	}

	result := engine.AutoAssign()
	h.Metrics.Proposed(sourceAuto, len(result.Assigned))

	snap := engine.Snapshot("")
	h.RecordUsage(c, len(snap.Families), len(result.Assigned)+len(result.Unmatched))
	response.OK(c, models.AutoAssignResponse{
		Assigned:  nonNil(result.Assigned),
		Unmatched: result.Unmatched,
		State:     sessionState(c.Param("id"), snap),
	})
}

// Commit saves the pending assignments to the store
func (h *Handler) Commit(c *gin.Context) {
	engine, ok := h.session(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if timeout := h.Config.Sessions.CommitTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	n, err := engine.Commit(ctx)
	if err != nil {
		h.Metrics.Committed(false)
		h.Logger.Warn("commit failed", zap.String("session_id", c.Param("id")), zap.Error(err))
		response.Error(c, err)
		return
	}
	if n > 0 {
		h.Metrics.Committed(true)
	}
	response.OK(c, gin.H{
		"committed": n,
		"state":     sessionState(c.Param("id"), engine.Snapshot("")),
	})
}

// Discard reverts every pending assignment of the session
func (h *Handler) Discard(c *gin.Context) {
	engine, ok := h.session(c)
	if !ok {
		return
	}
	n := engine.Discard()
	response.OK(c, gin.H{
		"discarded": n,
		"state":     sessionState(c.Param("id"), engine.Snapshot("")),
	})
}

// CloseSession drops a session together with its pending assignments
func (h *Handler) CloseSession(c *gin.Context) {
	if !h.Sessions.Remove(c.Param("id")) {
		response.Error(c, fmt.Errorf("session %q: %w", c.Param("id"), appErrors.ErrSessionNotFound))
		return
	}
	h.Metrics.SetSessionsOpen(h.Sessions.Len())
	c.Status(http.StatusNoContent)
}

// Export renders one dataset of the session as CSV or PDF
func (h *Handler) Export(c *gin.Context) {
	engine, ok := h.session(c)
	if !ok {
		return
	}
	snap := engine.Snapshot("")

	var data roster.Dataset
	switch name := c.DefaultQuery("dataset", "assignments"); name {
	case "families":
		data = roster.FamiliesDataset(snap.Families)
	case "participants":
		data = roster.ParticipantsDataset(snap.Unassigned)
	case "assignments":
		familyNames := make(map[string]string, len(snap.Families))
		for _, f := range snap.Families {
			familyNames[f.ID] = f.Name
		}
		all := append(append([]models.Assignment(nil), snap.Committed...), snap.Pending...)
		data = roster.AssignmentsDataset(all,
			func(id string) string {
				p, _ := engine.Participant(id)
				return p.Name
			},
			func(id string) string { return familyNames[id] },
		)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown dataset %q", name)))
		return
	}

	var (
		body        []byte
		err         error
		contentType string
		ext         string
	)
	switch format := c.DefaultQuery("format", "csv"); format {
	case "csv":
		body, err = roster.RenderCSV(data)
		contentType, ext = "text/csv", "csv"
	case "pdf":
		body, err = roster.RenderPDF(data)
		contentType, ext = "application/pdf", "pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown format %q", format)))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("%s.%s", c.DefaultQuery("dataset", "assignments"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}

func (h *Handler) session(c *gin.Context) (*assigner.Engine, bool) {
	engine, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return engine, true
}

func sessionState(id string, snap assigner.Snapshot) models.SessionState {
	return models.SessionState{
		SessionID:    id,
		Unassigned:   nonNil(snap.Unassigned),
		HostFamilies: nonNil(snap.Families),
		Pending:      nonNil(snap.Pending),
		Summary:      snap.Summary,
	}
}

// nonNil keeps empty lists serialised as [] instead of null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

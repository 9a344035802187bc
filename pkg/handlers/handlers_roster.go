package handlers

import (
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/arnavshah/homestay-api/pkg/errors"
	"github.com/arnavshah/homestay-api/pkg/models"
	"github.com/arnavshah/homestay-api/pkg/response"
	"github.com/arnavshah/homestay-api/pkg/roster"
)

// ImportRoster stores participants and host families sent as JSON
func (h *Handler) ImportRoster(c *gin.Context) {
	var input models.RosterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	h.importRoster(c, input.Participants, input.HostFamilies)
}

// ImportRosterCSV stores participants and host families uploaded as CSV
// files. Either file may be omitted.
func (h *Handler) ImportRosterCSV(c *gin.Context) {
	participantsFile, _ := c.FormFile("participants_file")
	familiesFile, _ := c.FormFile("families_file")
	if participantsFile == nil && familiesFile == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "participants_file or families_file is required"))
		return
	}

	var (
		participants []models.Participant
		families     []models.HostFamily
	)
	if participantsFile != nil {
		err := readUpload(participantsFile, func(f multipart.File) (err error) {
			participants, err = roster.ReadParticipantsCSV(f)
			return err
		})
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
			return
		}
	}
	if familiesFile != nil {
		err := readUpload(familiesFile, func(f multipart.File) (err error) {
			families, err = roster.ReadFamiliesCSV(f)
			return err
		})
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
			return
		}
	}

	h.importRoster(c, participants, families)
}

func (h *Handler) importRoster(c *gin.Context, participants []models.Participant, families []models.HostFamily) {
	if err := h.Store.ImportRoster(c.Request.Context(), participants, families); err != nil {
		response.Error(c, err)
		return
	}

	h.RecordUsage(c, len(families), len(participants))
	h.Logger.Info("roster imported",
		zap.Int("participants", len(participants)),
		zap.Int("host_families", len(families)),
	)
	response.Created(c, gin.H{
		"participants":  len(participants),
		"host_families": len(families),
	})
}

func readUpload(fh *multipart.FileHeader, read func(multipart.File) error) error {
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	return read(f)
}

// Package application provides HTTP handlers for candidate applications.
package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"TalentPipe-backend/internal/model"
	"TalentPipe-backend/internal/stagemachine"
	"TalentPipe-backend/internal/utilities"
)

// MaxResumeBytes is the largest resume ApplyHandler accepts
const MaxResumeBytes = 10 << 20

var resumeExtensions = []string{".pdf", ".doc", ".docx", ".txt"}

// ApplicationController handles application related endpoints
type ApplicationController struct {
	Machine *stagemachine.Machine
	Log     *logrus.Entry
}

// NewApplicationController creates a new instance of ApplicationController
func NewApplicationController(machine *stagemachine.Machine, log *logrus.Logger) *ApplicationController {
	return &ApplicationController{
		Machine: machine,
		Log:     log.WithField("component", "application"),
	}
}

// ChangeStageRequest is the body of ChangeStageHandler
type ChangeStageRequest struct {
	StageID uuid.UUID `json:"stage_id" binding:"required"`
	Notes   *string   `json:"notes"`
}

// ApplyHandler submits the caller's application to a published job.
// @Summary Apply to a job
// @Description Resume must be smaller than 10 MB with .pdf, .doc, .docx or .txt extension. responses is a JSON array of {question, answer}.
// @Tags Application
// @Accept mpfd
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path string true "Job ID"
// @Param resume formData file false "Resume file"
// @Param resume_text formData string false "Plain text of the resume, used for scoring"
// @Param responses formData string false "Answers to the job questions"
// @Success 201 {object} model.Application "Successfully applied"
// @Failure 400 {object} utilities.ErrorResponse "Job not open, or required question unanswered"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Failure 409 {object} utilities.ErrorResponse "Already applied"
// @Failure 413 {object} utilities.ErrorResponse "File size is larger than 10 MB"
// @Failure 415 {object} utilities.ErrorResponse "File extension is not allowed"
// @Router /jobs/{id}/applications [post]
func (ac *ApplicationController) ApplyHandler(c *gin.Context) {
	actor, err := utilities.ExtractActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	jobID, ok := utilities.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	in := stagemachine.ApplyInput{ResumeText: c.PostForm("resume_text")}

	if raw := c.PostForm("responses"); raw != "" {
		var responses []model.QuestionResponse
		if err := json.Unmarshal([]byte(raw), &responses); err != nil {
			c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
				Error: fmt.Sprintf("Invalid responses: %s", err.Error()),
			})
			return
		}
		in.Responses = responses
	}

	rawFile, err := c.FormFile("resume")
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesError):
		c.JSON(http.StatusRequestEntityTooLarge, utilities.ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, http.ErrMissingFile):
		// resume is optional
	case err != nil:
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: fmt.Sprintf("Failed to retrieve file: %s", err.Error()),
		})
		return
	default:
		if rawFile.Size > MaxResumeBytes {
			c.JSON(http.StatusRequestEntityTooLarge, utilities.ErrorResponse{Error: "File size is larger than 10 MB"})
			return
		}
		extension := strings.ToLower(filepath.Ext(rawFile.Filename))
		if !slices.Contains(resumeExtensions, extension) {
			c.JSON(http.StatusUnsupportedMediaType, utilities.ErrorResponse{
				Error: fmt.Sprintf("Unsupported file extension: %s", extension),
			})
			return
		}

		f, err := rawFile.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Cannot open file"})
			return
		}
		defer func() {
			if err := f.Close(); err != nil {
				ac.Log.WithError(err).Warn("failed to close uploaded file")
			}
		}()

		if in.Resume, err = io.ReadAll(f); err != nil {
			c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Cannot read file"})
			return
		}
		in.ResumeExt = extension
	}

	app, err := ac.Machine.Apply(c.Request.Context(), actor.ID, jobID, in)
	if err != nil {
		utilities.RespondError(c, ac.Log, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// ListHandler lists the applications of one of the caller's company jobs.
// @Summary List job applications
// @Tags Application
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path string true "Job ID"
// @Success 200 {array} model.Application "Applications"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Router /jobs/{id}/applications [get]
func (ac *ApplicationController) ListHandler(c *gin.Context) {
	actor, err := utilities.ExtractActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	jobID, ok := utilities.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	apps, err := ac.Machine.List(c.Request.Context(), actor.CompanyID, jobID)
	if err != nil {
		utilities.RespondError(c, ac.Log, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

// GetHandler returns one application with its current stage and history.
// @Summary Get application
// @Tags Application
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path string true "Job ID"
// @Param applicationId path string true "Application ID"
// @Success 200 {object} model.Application "Application"
// @Failure 404 {object} utilities.ErrorResponse "Application not found"
// @Router /jobs/{id}/applications/{applicationId} [get]
func (ac *ApplicationController) GetHandler(c *gin.Context) {
	actor, err := utilities.ExtractActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	jobID, ok := utilities.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	appID, ok := utilities.ParseUUIDParam(c, "applicationId")
	if !ok {
		return
	}

	app, err := ac.Machine.Get(c.Request.Context(), actor.CompanyID, jobID, appID)
	if err != nil {
		utilities.RespondError(c, ac.Log, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// ChangeStageHandler moves an application to another stage of its job.
// @Summary Move application to stage
// @Tags Application
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path string true "Job ID"
// @Param applicationId path string true "Application ID"
// @Param Stage body ChangeStageRequest true "Destination stage"
// @Success 200 {object} model.Application "Application in its new stage"
// @Failure 400 {object} utilities.ErrorResponse "Stage not in this job, or already in it"
// @Failure 404 {object} utilities.ErrorResponse "Application not found"
// @Failure 409 {object} utilities.ErrorResponse "Stage was deleted meanwhile"
// @Router /jobs/{id}/applications/{applicationId}/stage [post]
func (ac *ApplicationController) ChangeStageHandler(c *gin.Context) {
	actor, err := utilities.ExtractActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	jobID, ok := utilities.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	appID, ok := utilities.ParseUUIDParam(c, "applicationId")
	if !ok {
		return
	}

	var req ChangeStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: fmt.Sprintf("Invalid request body: %s", err.Error()),
		})
		return
	}

	app, err := ac.Machine.ChangeStage(c.Request.Context(), actor, appID, jobID, req.StageID, req.Notes)
	if err != nil {
		utilities.RespondError(c, ac.Log, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

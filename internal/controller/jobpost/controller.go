// Package jobpost provides HTTP handlers for job related operations.
package jobpost

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"TalentPipe-backend/internal/lifecycle"
	"TalentPipe-backend/internal/utilities"
)

// JobPostController handles job related endpoints
type JobPostController struct {
	Jobs *lifecycle.Manager
	Log  *logrus.Entry
}

// NewJobPostController creates a new instance of JobPostController
func NewJobPostController(jobs *lifecycle.Manager, log *logrus.Logger) *JobPostController {
	return &JobPostController{
		Jobs: jobs,
		Log:  log.WithField("component", "jobpost"),
	}
}

// SlugPreviewResponse type for swagger docs
type SlugPreviewResponse struct {
	Slug string `json:"slug"`
}

func decodeStrict(c *gin.Context, dst any) bool {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: fmt.Sprintf("Invalid request body: %s", err.Error()),
		})
		return false
	}
	return true
}

// CreateJobHandler creates a DRAFT job with its pipeline for the caller's company.
// @Summary Create job based on given json structure
// @Tags Job
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param Job body lifecycle.CreateInput true "Input job information"
// @Success 201 {object} model.Job "Successfully create job"
// @Failure 400 {object} utilities.ErrorResponse "Invalid request body"
// @Failure 401 {object} utilities.ErrorResponse "Invalid token"
// @Failure 409 {object} utilities.ErrorResponse "No free slug"
// @Failure 500 {object} utilities.ErrorResponse "Database error"
// @Router /jobs [post]
func (jc *JobPostController) CreateJobHandler(c *gin.Context) {
	actor, err := utilities.ExtractActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	var in lifecycle.CreateInput
	if !decodeStrict(c, &in) {
		return
	}

	job, err := jc.Jobs.Create(c.Request.Context(), actor, in)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

// GetJobHandler returns one of the caller's company jobs with department, stages and questions.
// @Summary Get job by id
// @Tags Job
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path string true "Job ID"
// @Success 200 {object} model.Job "Job"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Router /jobs/{id} [get]
func (jc *JobPostController) GetJobHandler(c *gin.Context) {
	actor, err := utilities.ExtractActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	jobID, ok := utilities.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	job, err := jc.Jobs.Get(c.Request.Context(), actor.CompanyID, jobID)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// UpdateJobHandler applies a partial edit, reconciling stages and questions when given.
// @Summary Edit job and its pipeline
// @Description Omitted fields are left alone. A non-empty stages list is reconciled against the current pipeline.
// @Tags Job
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path string true "Job ID"
// @Param Job body lifecycle.UpdateInput true "Fields to change"
// @Success 200 {object} model.Job "Updated job"
// @Failure 400 {object} utilities.ErrorResponse "Invalid request body"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Failure 409 {object} utilities.ErrorResponse "Slug taken, or stage still holds candidates"
// @Router /jobs/{id} [patch]
func (jc *JobPostController) UpdateJobHandler(c *gin.Context) {
	actor, err := utilities.ExtractActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	jobID, ok := utilities.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var in lifecycle.UpdateInput
	if !decodeStrict(c, &in) {
		return
	}

	job, err := jc.Jobs.Update(c.Request.Context(), actor, jobID, in)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// TransitionHandler returns the handler applying a status action (publish,
// pause, resume, close) to the job in the path.
// @Summary Change job status
// @Tags Job
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path string true "Job ID"
// @Success 200 {object} model.Job "Job in its new status"
// @Failure 400 {object} utilities.ErrorResponse "Job is not in the status the action requires"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Router /jobs/{id}/publish [post]
// @Router /jobs/{id}/pause [post]
// @Router /jobs/{id}/resume [post]
// @Router /jobs/{id}/close [post]
func (jc *JobPostController) TransitionHandler(action lifecycle.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := utilities.ExtractActor(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
			return
		}
		jobID, ok := utilities.ParseUUIDParam(c, "id")
		if !ok {
			return
		}

		job, err := jc.Jobs.Transition(c.Request.Context(), actor, jobID, action)
		if err != nil {
			utilities.RespondError(c, jc.Log, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

// ChangeLogHandler lists the job's change log, newest first.
// @Summary Get job change log
// @Tags Job
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path string true "Job ID"
// @Success 200 {array} model.JobChangeLog "Change log entries"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Router /jobs/{id}/changelog [get]
func (jc *JobPostController) ChangeLogHandler(c *gin.Context) {
	actor, err := utilities.ExtractActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	jobID, ok := utilities.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := jc.Jobs.ChangeLog(c.Request.Context(), actor.CompanyID, jobID)
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// SlugPreviewHandler returns the slug a job with the given title would get now.
// @Summary Preview job slug
// @Tags Job
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param title query string true "Job title"
// @Param prefix query string false "Slug prefix"
// @Success 200 {object} SlugPreviewResponse "Slug that is currently free"
// @Failure 400 {object} utilities.ErrorResponse "Missing title"
// @Router /slug/preview [get]
func (jc *JobPostController) SlugPreviewHandler(c *gin.Context) {
	var prefix *string
	if p, ok := c.GetQuery("prefix"); ok {
		prefix = &p
	}

	s, err := jc.Jobs.PreviewSlug(c.Request.Context(), prefix, c.Query("title"))
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, SlugPreviewResponse{Slug: s})
}

// GetPublishedJobHandler returns a published job by slug. No token is needed.
// @Summary Get published job by slug
// @Tags Job
// @Produce json
// @Param slug path string true "Job slug"
// @Success 200 {object} model.Job "Published job"
// @Failure 404 {object} utilities.ErrorResponse "No published job with that slug"
// @Router /public/jobs/{slug} [get]
func (jc *JobPostController) GetPublishedJobHandler(c *gin.Context) {
	job, err := jc.Jobs.GetPublished(c.Request.Context(), c.Param("slug"))
	if err != nil {
		utilities.RespondError(c, jc.Log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

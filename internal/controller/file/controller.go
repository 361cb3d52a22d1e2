// Package file provides HTTP handlers for file-related operations.
package file

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"TalentPipe-backend/internal/blob"
	"TalentPipe-backend/internal/lifecycle"
	"TalentPipe-backend/internal/utilities"
)

// FileController serves stored resumes
type FileController struct {
	Blobs blob.Store
	Jobs  *lifecycle.Manager
	Log   *logrus.Entry
}

// NewFileController creates a new instance of FileController
func NewFileController(blobs blob.Store, jobs *lifecycle.Manager, log *logrus.Logger) *FileController {
	return &FileController{
		Blobs: blobs,
		Jobs:  jobs,
		Log:   log.WithField("component", "file"),
	}
}

// GetFile streams the object stored under bucket/key. Keys start with the id
// of the job the resume was sent to; only that job's company may read it.
// @Summary Download a stored file
// @Tags File
// @Produce octet-stream
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param bucket path string true "Bucket"
// @Param key path string true "Object key"
// @Success 200 {file} file "File content"
// @Failure 404 {object} utilities.ErrorResponse "File not found"
// @Failure 500 {object} utilities.ErrorResponse "Storage error"
// @Router /file/{bucket}/{key} [get]
func (fc *FileController) GetFile(c *gin.Context) {
	actor, err := utilities.ExtractActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	bucket := c.Param("bucket")
	key := strings.TrimPrefix(c.Param("key"), "/")
	jobPart, _, found := strings.Cut(key, "/")
	jobID, perr := uuid.Parse(jobPart)
	if !found || perr != nil || strings.Contains(key, "..") {
		c.JSON(http.StatusNotFound, utilities.ErrorResponse{Error: "File not found"})
		return
	}
	if _, err := fc.Jobs.Get(c.Request.Context(), actor.CompanyID, jobID); err != nil {
		if utilities.StatusOf(err) == http.StatusNotFound {
			c.JSON(http.StatusNotFound, utilities.ErrorResponse{Error: "File not found"})
			return
		}
		utilities.RespondError(c, fc.Log, err)
		return
	}

	obj, err := fc.Blobs.Open(c.Request.Context(), bucket, key)
	if errors.Is(err, blob.ErrNotFound) {
		c.JSON(http.StatusNotFound, utilities.ErrorResponse{Error: "File not found"})
		return
	}
	if err != nil {
		fc.Log.WithError(err).WithField("key", key).Error("failed to open file")
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Failed to download file from storage"})
		return
	}
	defer func() {
		if err := obj.Body.Close(); err != nil {
			fc.Log.WithError(err).Warn("failed to close storage reader")
		}
	}()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.Size, contentType, obj.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", path.Base(key)),
	})
}

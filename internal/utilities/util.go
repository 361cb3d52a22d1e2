// Package utilities contain utility code that use across the package
package utilities

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/model"
)

// ActorKey is the gin context key the identity context is stored under
const ActorKey = "actor"

// ErrorResponse type for swagger docs
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse type for swagger docs
type MessageResponse struct {
	Message string `json:"message"`
}

// ExtractActor extracts the identity context from Gin context.
// It does not abort the request; it returns an error when missing/invalid.
func ExtractActor(c *gin.Context) (model.Actor, error) {
	a, _ := c.Get(ActorKey)
	if a == nil {
		return model.Actor{}, errors.New("User information not provided")
	}

	actor, ok := a.(model.Actor)
	if !ok {
		return model.Actor{}, errors.New("Failed to assert type")
	}
	return actor, nil
}

// ParseUUIDParam reads path parameter name as a uuid, answering 400 when it is not one
func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid " + name + ": must be a uuid"})
		return uuid.Nil, false
	}
	return id, true
}

// StatusOf maps an error kind to its HTTP status
func StatusOf(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as an ErrorResponse. Internal detail is logged,
// never sent.
func RespondError(c *gin.Context, log *logrus.Entry, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError && log != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
	}
	c.JSON(status, ErrorResponse{Error: apperror.Message(err)})
}

package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/pipeline"
)

// CreateInput describes a new job
type CreateInput struct {
	Title        string     `json:"title" validate:"required,max=200"`
	Description  string     `json:"description" validate:"max=20000"`
	Requirements string     `json:"requirements" validate:"max=20000"`
	Tags         []string   `json:"tags" validate:"max=30,dive,required,max=50"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	// SlugPrefix is prepended to the slug derived from Title
	SlugPrefix *string                  `json:"slug_prefix,omitempty" validate:"omitempty,max=60"`
	Stages     []pipeline.StageInput    `json:"stages" validate:"dive"`
	Questions  []pipeline.QuestionInput `json:"questions" validate:"dive"`
}

// UpdateInput is a partial edit of a job. Nil fields are left alone, as are
// empty Stages and Questions lists.
type UpdateInput struct {
	Title        *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description  *string   `json:"description,omitempty" validate:"omitempty,max=20000"`
	Requirements *string   `json:"requirements,omitempty" validate:"omitempty,max=20000"`
	Tags         *[]string `json:"tags,omitempty" validate:"omitempty,max=30,dive,required,max=50"`
	// DepartmentID set to the nil uuid removes the department
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	// ExpiresAt set to the zero time ("0001-01-01T00:00:00Z") removes the expiration
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// Slug renames the job; it goes through the same normalization as titles
	Slug      *string                  `json:"slug,omitempty" validate:"omitempty,max=200"`
	Stages    []pipeline.StageInput    `json:"stages" validate:"dive"`
	Questions []pipeline.QuestionInput `json:"questions" validate:"dive"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validationError turns validator output into a Validation error listing the
// offending fields
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation("invalid input: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// drop the top level struct name
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s", field, fe.Tag()))
		}
	}
	return apperror.Validation("invalid input: %s", strings.Join(msgs, "; "))
}

// Package scoring evaluates how well an application fits a job.
package scoring

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrDisabled is returned by Disabled
var ErrDisabled = errors.New("scoring is not configured")

// Response is one answered question sent for evaluation
type Response struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Request is the material the oracle evaluates
type Request struct {
	ResumeText   string
	ResumeURL    string
	JobTitle     string
	Description  string
	Requirements string
	Responses    []Response
}

// Result is an oracle verdict. Scores range 0 to 100.
type Result struct {
	OverallScore           float64         `json:"overall_score"`
	EducationScore         float64         `json:"education_score"`
	ExperienceScore        float64         `json:"experience_score"`
	QuestionResponsesScore float64         `json:"question_responses_score"`
	Provider               string          `json:"-"`
	Model                  string          `json:"-"`
	Details                json.RawMessage `json:"details"`
}

// Oracle scores applications
type Oracle interface {
	Evaluate(ctx context.Context, req Request) (*Result, error)
}

// Disabled is an Oracle that always fails with ErrDisabled
type Disabled struct{}

// Evaluate implements Oracle
func (Disabled) Evaluate(context.Context, Request) (*Result, error) {
	return nil, ErrDisabled
}

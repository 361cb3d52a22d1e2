// Package pipeline owns a job's stage and question definitions and reconciles
// them against the desired pipeline sent on every job edit.
package pipeline

import (
	"strings"

	"github.com/google/uuid"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/model"
)

// StageInput is one entry of a desired stage list. A missing or unknown ID
// means "create".
type StageInput struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Name        string     `json:"name" validate:"required,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	OrderIndex  *int       `json:"order_index,omitempty" validate:"omitempty,min=0"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

// QuestionInput is one entry of a desired question list
type QuestionInput struct {
	Question   string `json:"question" validate:"required,max=2000"`
	OrderIndex *int   `json:"order_index,omitempty" validate:"omitempty,min=0"`
	IsRequired *bool  `json:"is_required,omitempty"`
}

// StagePlan is the explicit create/update/delete set computed before any
// storage call is issued
type StagePlan struct {
	Updates []model.Stage
	Creates []model.Stage
	Deletes []model.Stage
}

// Changed reports whether the plan updates or creates stages. Deletes alone
// do not count, matching when the change log is written.
func (p StagePlan) Changed() bool {
	return len(p.Updates) > 0 || len(p.Creates) > 0
}

// Empty reports whether applying the plan touches no rows
func (p StagePlan) Empty() bool {
	return !p.Changed() && len(p.Deletes) == 0
}

// DeleteIDs lists the ids of the stages the plan removes
func (p StagePlan) DeleteIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Deletes))
	for _, s := range p.Deletes {
		ids = append(ids, s.ID)
	}
	return ids
}

// PlanStages diffs the existing stages of jobID against desired.
//
// Entries whose id matches an existing stage are updates when any of name,
// description, order index (defaulting to the array position) or active flag
// (defaulting to true) differ, and no-ops otherwise. Entries without a known
// id are creates. Existing stages no entry claims are deletes.
func PlanStages(jobID uuid.UUID, existing []model.Stage, desired []StageInput) (StagePlan, error) {
	var plan StagePlan

	remaining := make(map[uuid.UUID]model.Stage, len(existing))
	for _, s := range existing {
		remaining[s.ID] = s
	}
	seen := make(map[uuid.UUID]struct{}, len(desired))

	for i, in := range desired {
		orderIndex := i
		if in.OrderIndex != nil {
			orderIndex = *in.OrderIndex
		}
		isActive := true
		if in.IsActive != nil {
			isActive = *in.IsActive
		}
		description := normalizeDescription(in.Description)

		if in.ID != nil {
			if _, dup := seen[*in.ID]; dup {
				return StagePlan{}, apperror.Validation("stage %s appears more than once in the pipeline", *in.ID)
			}
			seen[*in.ID] = struct{}{}

			if current, ok := remaining[*in.ID]; ok {
				delete(remaining, *in.ID)

				if current.Name == in.Name &&
					sameDescription(normalizeDescription(current.Description), description) &&
					current.OrderIndex == orderIndex &&
					current.IsActive == isActive {
					continue
				}
				current.Name = in.Name
				current.Description = description
				current.OrderIndex = orderIndex
				current.IsActive = isActive
				plan.Updates = append(plan.Updates, current)
				continue
			}
		}

		plan.Creates = append(plan.Creates, model.Stage{
			ID:          uuid.New(),
			JobID:       jobID,
			Name:        in.Name,
			Description: description,
			OrderIndex:  orderIndex,
			IsActive:    isActive,
		})
	}

	// walk existing rather than the map so deletes come out in pipeline order
	for _, s := range existing {
		if _, ok := remaining[s.ID]; ok {
			plan.Deletes = append(plan.Deletes, s)
		}
	}

	return plan, nil
}

// PlanQuestions builds the rows that replace a job's questions
func PlanQuestions(jobID uuid.UUID, desired []QuestionInput) []model.Question {
	rows := make([]model.Question, 0, len(desired))
	for i, in := range desired {
		orderIndex := i
		if in.OrderIndex != nil {
			orderIndex = *in.OrderIndex
		}
		isRequired := true
		if in.IsRequired != nil {
			isRequired = *in.IsRequired
		}
		rows = append(rows, model.Question{
			ID:         uuid.New(),
			JobID:      jobID,
			Question:   in.Question,
			OrderIndex: orderIndex,
			IsRequired: isRequired,
		})
	}
	return rows
}

// NewStages builds the rows for a job created with an initial pipeline
func NewStages(jobID uuid.UUID, desired []StageInput) ([]model.Stage, error) {
	plan, err := PlanStages(jobID, nil, desired)
	if err != nil {
		return nil, err
	}
	return plan.Creates, nil
}

func normalizeDescription(d *string) *string {
	if d == nil || strings.TrimSpace(*d) == "" {
		return nil
	}
	v := *d
	return &v
}

func sameDescription(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

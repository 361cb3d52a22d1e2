package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuestionResponse is a candidate answer, snapshotting the question text
// since questions are recreated on every pipeline edit
type QuestionResponse struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer"`
}

// Application represents one candidate's submission against a job
type Application struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID       uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_applications_job_candidate" json:"job_id"`
	CompanyID   uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	CandidateID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_applications_job_candidate" json:"candidate_id"`

	// CurrentStageID references Stage.ID; the FK makes postgres refuse to
	// delete a stage while an application still sits in it
	CurrentStageID *uuid.UUID `gorm:"type:uuid;index" json:"current_stage_id"`
	CurrentStage   *Stage     `gorm:"foreignKey:CurrentStageID;references:ID" json:"current_stage,omitempty"`

	ResumeURL         string                                `gorm:"type:text" json:"resume_url"`
	QuestionResponses datatypes.JSONSlice[QuestionResponse] `gorm:"type:jsonb" json:"question_responses"`

	ApplicationScore

	AppliedAt time.Time `gorm:"autoCreateTime" json:"applied_at"`
	UpdatedAt time.Time `json:"updated_at"`

	History []StageTransitionHistory `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"history,omitempty"`
}

// BeforeCreate assigns a fresh id when the caller did not set one
func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ApplicationScore holds the latest evaluation returned by the scoring oracle
type ApplicationScore struct {
	OverallScore           *float64       `json:"overall_score,omitempty"`
	EducationScore         *float64       `json:"education_score,omitempty"`
	ExperienceScore        *float64       `json:"experience_score,omitempty"`
	QuestionResponsesScore *float64       `json:"question_responses_score,omitempty"`
	ScoreProvider          string         `gorm:"type:text" json:"score_provider,omitempty"`
	ScoreModel             string         `gorm:"type:text" json:"score_model,omitempty"`
	ScoreDetails           datatypes.JSON `gorm:"type:jsonb" json:"score_details,omitempty"`
	EvaluatedAt            *time.Time     `gorm:"type:timestamp" json:"evaluated_at,omitempty"`
}

// StageTransitionHistory is an immutable record of one application stage move
type StageTransitionHistory struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID uuid.UUID `gorm:"type:uuid;not null;index" json:"application_id"`
	JobID         uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	CompanyID     uuid.UUID `gorm:"type:uuid;not null" json:"company_id"`

	FromStageID *uuid.UUID `gorm:"type:uuid;index" json:"from_stage_id"`
	FromStage   *Stage     `gorm:"foreignKey:FromStageID;references:ID" json:"-"`
	ToStageID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"to_stage_id"`
	ToStage     *Stage     `gorm:"foreignKey:ToStageID;references:ID" json:"-"`

	// stage names as they were when the move happened
	FromStageName *string `gorm:"type:text" json:"from_stage_name,omitempty"`
	ToStageName   string  `gorm:"type:text;not null" json:"to_stage_name"`

	ChangedByID uuid.UUID `gorm:"type:uuid;not null" json:"changed_by_id"`
	Notes       *string   `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	// Seq orders moves sharing a CreatedAt; postgres assigns it on insert
	Seq int64 `gorm:"autoIncrement;not null;index" json:"-"`
}

// TableName keeps the ledger table name singular like the domain term
func (StageTransitionHistory) TableName() string {
	return "stage_transition_history"
}

// BeforeCreate assigns a fresh id when the caller did not set one
func (h *StageTransitionHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// Package model contain gorm model for recording data to database
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of a job post
type JobStatus string

// Job lifecycle states, stored verbatim in jobs.status
const (
	JobStatusDraft     JobStatus = "DRAFT"
	JobStatusPublished JobStatus = "PUBLISHED"
	JobStatusPaused    JobStatus = "PAUSED"
	JobStatusClosed    JobStatus = "CLOSED"
)

// EditableJobInfo is part of job that can be edited field by field
type EditableJobInfo struct {
	Title        string         `gorm:"type:text;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Requirements string         `gorm:"type:text" json:"requirements"`
	Tags         pq.StringArray `gorm:"type:text[]" json:"tags"`
	ExpiresAt    *time.Time     `gorm:"type:timestamp" json:"expires_at,omitempty"`
}

// Job is gorm model for store job post data in DB
type Job struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID `gorm:"type:uuid;not null;index;<-:create" json:"company_id"`
	CreatedByID uuid.UUID `gorm:"type:uuid;not null;<-:create" json:"created_by_id"`

	DepartmentID *uuid.UUID  `gorm:"type:uuid;index" json:"department_id,omitempty"`
	Department   *Department `gorm:"foreignKey:DepartmentID;references:ID" json:"department,omitempty"`

	EditableJobInfo
	Slug   string    `gorm:"type:text;not null;uniqueIndex:idx_jobs_slug" json:"slug"`
	Status JobStatus `gorm:"type:text;not null;index;check:status IN ('DRAFT','PUBLISHED','PAUSED','CLOSED')" json:"status"`

	PublishedAt *time.Time `gorm:"type:timestamp" json:"published_at,omitempty"`
	ClosedAt    *time.Time `gorm:"type:timestamp" json:"closed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Stages       []Stage        `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"stages,omitempty"`
	Questions    []Question     `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Applications []Application  `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"-"`
	ChangeLogs   []JobChangeLog `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a fresh id when the caller did not set one
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// Department groups a company's jobs
type Department struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
}

// BeforeCreate assigns a fresh id when the caller did not set one
func (d *Department) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// JobChangeLog is one audited change on a job definition
type JobChangeLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID       uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	CompanyID   uuid.UUID `gorm:"type:uuid;not null" json:"company_id"`
	ChangedByID uuid.UUID `gorm:"type:uuid;not null" json:"changed_by_id"`
	Field       string    `gorm:"type:text" json:"field"`
	OldValue    *string   `gorm:"type:text" json:"old_value,omitempty"`
	NewValue    *string   `gorm:"type:text" json:"new_value,omitempty"`
	Description string    `gorm:"type:text;not null" json:"description"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns a fresh id when the caller did not set one
func (l *JobChangeLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

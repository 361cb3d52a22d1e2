package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stage is one ordered step of a job's hiring pipeline
type Stage struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID       uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	OrderIndex  int       `gorm:"not null" json:"order_index"`
	// no gorm default here, a default would swallow explicit false on insert
	IsActive bool `gorm:"not null" json:"is_active"`
}

// BeforeCreate assigns a fresh id when the caller did not set one
func (s *Stage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Question is an extra question candidates answer when applying
type Question struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID      uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	Question   string    `gorm:"type:text;not null" json:"question"`
	OrderIndex int       `gorm:"not null" json:"order_index"`
	IsRequired bool      `gorm:"not null" json:"is_required"`
}

// BeforeCreate assigns a fresh id when the caller did not set one
func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// Package changelog records audited edits of job definitions.
package changelog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/model"
)

// Descriptions written for pipeline edits. They are user-facing and kept in
// the product's language.
const (
	JobCreated       = "Vaga criada"
	StagesUpdated    = "Etapas atualizadas"
	QuestionsUpdated = "Perguntas atualizadas"
	StatusChanged    = "Status alterado"
	FieldUpdated     = "Campo atualizado"
)

// Entry describes one change about to be recorded
type Entry struct {
	Field       string
	OldValue    *string
	NewValue    *string
	Description string
}

// FieldChange builds the entry for a changed scalar field
func FieldChange(field string, oldValue, newValue *string) Entry {
	return Entry{
		Field:       field,
		OldValue:    oldValue,
		NewValue:    newValue,
		Description: fmt.Sprintf("%s: %s", FieldUpdated, field),
	}
}

// Recorder appends JobChangeLog rows inside the caller's transaction
type Recorder struct {
	now func() time.Time
}

// NewRecorder creates a Recorder using the wall clock
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Record appends entries for job, attributed to actor
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, job *model.Job, actor model.Actor, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]model.JobChangeLog, 0, len(entries))
	now := r.now()
	for _, e := range entries {
		rows = append(rows, model.JobChangeLog{
			ID:          uuid.New(),
			JobID:       job.ID,
			CompanyID:   job.CompanyID,
			ChangedByID: actor.ID,
			Field:       e.Field,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			Description: e.Description,
			CreatedAt:   now,
		})
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return apperror.Storage(err, "record job change log")
	}
	return nil
}

// List returns a job's change log, newest first
func (r *Recorder) List(ctx context.Context, db *gorm.DB, jobID uuid.UUID) ([]model.JobChangeLog, error) {
	var rows []model.JobChangeLog
	if err := db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, apperror.Storage(err, "list job change log")
	}
	return rows, nil
}

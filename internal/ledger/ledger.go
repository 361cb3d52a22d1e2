// Package ledger keeps the append-only history of application stage moves.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/database"
	"TalentPipe-backend/internal/model"
)

// StageLookup resolves a stage scoped by its job. A stage outside the job must
// come back as a validation error.
type StageLookup interface {
	StageForJob(ctx context.Context, db *gorm.DB, jobID, stageID uuid.UUID) (*model.Stage, error)
}

// Entry is one move about to be recorded
type Entry struct {
	ApplicationID uuid.UUID
	JobID         uuid.UUID
	CompanyID     uuid.UUID
	FromStageID   *uuid.UUID
	ToStageID     uuid.UUID
	ChangedByID   uuid.UUID
	Notes         *string
}

// Ledger appends and reads StageTransitionHistory rows
type Ledger struct {
	stages StageLookup
	now    func() time.Time
	log    *logrus.Entry
}

// New creates a Ledger validating stages through stages
func New(stages StageLookup, log *logrus.Logger) *Ledger {
	return &Ledger{
		stages: stages,
		now:    time.Now,
		log:    log.WithField("component", "ledger"),
	}
}

// Append records one move inside tx. Both stages must belong to the entry's
// job; their names are copied onto the row so the history stays readable once
// a stage is renamed. A stage deleted by a concurrent pipeline edit surfaces
// as a conflict once that edit commits.
func (l *Ledger) Append(ctx context.Context, tx *gorm.DB, e Entry) (*model.StageTransitionHistory, error) {
	to, err := l.stages.StageForJob(ctx, tx, e.JobID, e.ToStageID)
	if err != nil {
		return nil, err
	}

	row := model.StageTransitionHistory{
		ID:            uuid.New(),
		ApplicationID: e.ApplicationID,
		JobID:         e.JobID,
		CompanyID:     e.CompanyID,
		ToStageID:     to.ID,
		ToStageName:   to.Name,
		ChangedByID:   e.ChangedByID,
		Notes:         e.Notes,
		CreatedAt:     l.now(),
	}

	if e.FromStageID != nil {
		from, err := l.stages.StageForJob(ctx, tx, e.JobID, *e.FromStageID)
		if err != nil {
			return nil, err
		}
		row.FromStageID = &from.ID
		row.FromStageName = &from.Name
	}

	err = tx.WithContext(ctx).Create(&row).Error
	if database.IsForeignKeyViolation(err) {
		return nil, apperror.Conflict("stage %q was removed from the pipeline; reload the job and pick another stage", to.Name)
	}
	if err != nil {
		return nil, apperror.Storage(err, "append stage transition")
	}

	l.log.WithFields(logrus.Fields{
		"application_id": e.ApplicationID,
		"to_stage_id":    e.ToStageID,
	}).Debug("stage transition recorded")

	return &row, nil
}

// History returns an application's moves, newest first
func (l *Ledger) History(ctx context.Context, db *gorm.DB, applicationID uuid.UUID) ([]model.StageTransitionHistory, error) {
	var rows []model.StageTransitionHistory
	if err := db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at DESC, seq DESC").
		Find(&rows).Error; err != nil {
		return nil, apperror.Storage(err, "list stage transitions")
	}
	return rows, nil
}

// PurgeForStages deletes every row whose from or to stage is in stageIDs and
// returns how many were removed. It runs before the stages themselves are
// deleted.
func PurgeForStages(ctx context.Context, tx *gorm.DB, stageIDs []uuid.UUID) (int64, error) {
	if len(stageIDs) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).
		Where("from_stage_id IN ? OR to_stage_id IN ?", stageIDs, stageIDs).
		Delete(&model.StageTransitionHistory{})
	if res.Error != nil {
		return 0, apperror.Storage(res.Error, "purge stage transitions")
	}
	return res.RowsAffected, nil
}

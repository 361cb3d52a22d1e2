// Package stagemachine moves applications through the stages of their job and
// takes in new applications.
package stagemachine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/blob"
	"TalentPipe-backend/internal/database"
	"TalentPipe-backend/internal/ledger"
	"TalentPipe-backend/internal/metrics"
	"TalentPipe-backend/internal/model"
	"TalentPipe-backend/internal/notify"
	"TalentPipe-backend/internal/pipeline"
	"TalentPipe-backend/internal/scoring"
)

const defaultScoreTimeout = 30 * time.Second

// Deps are the collaborators of a Machine
type Deps struct {
	DB       *gorm.DB
	Pipeline *pipeline.Store
	Ledger   *ledger.Ledger
	Oracle   scoring.Oracle
	Blobs    blob.Store
	Sink     notify.Sink
	// Bucket resumes are stored in
	Bucket       string
	ScoreTimeout time.Duration
	Log          *logrus.Logger
}

// Machine is the application stage machine
type Machine struct {
	db           *gorm.DB
	pipeline     *pipeline.Store
	ledger       *ledger.Ledger
	oracle       scoring.Oracle
	blobs        blob.Store
	sink         notify.Sink
	bucket       string
	scoreTimeout time.Duration
	metrics      *metrics.Metrics
	log          *logrus.Entry
	pending      sync.WaitGroup
}

// New creates a Machine
func New(d Deps) *Machine {
	timeout := d.ScoreTimeout
	if timeout <= 0 {
		timeout = defaultScoreTimeout
	}
	oracle := d.Oracle
	if oracle == nil {
		oracle = scoring.Disabled{}
	}
	sink := d.Sink
	if sink == nil {
		sink = notify.NewLog(d.Log)
	}
	return &Machine{
		db:           d.DB,
		pipeline:     d.Pipeline,
		ledger:       d.Ledger,
		oracle:       oracle,
		blobs:        d.Blobs,
		sink:         sink,
		bucket:       d.Bucket,
		scoreTimeout: timeout,
		metrics:      metrics.Get(),
		log:          d.Log.WithField("component", "stagemachine"),
	}
}

// StageChanged is the payload of notify.ApplicationStageChanged
type StageChanged struct {
	ApplicationID uuid.UUID  `json:"application_id"`
	JobID         uuid.UUID  `json:"job_id"`
	CompanyID     uuid.UUID  `json:"company_id"`
	FromStageID   *uuid.UUID `json:"from_stage_id"`
	ToStageID     uuid.UUID  `json:"to_stage_id"`
	ChangedByID   uuid.UUID  `json:"changed_by_id"`
}

// ChangeStage moves an application of actor's company to toStageID.
//
// The application is looked up by (id, job, company), so applications of other
// tenants are reported as not found. The destination must be a stage of the
// same job and differ from the current one. The history row and the new
// current stage are written in one transaction. Moving to an earlier stage is
// allowed and recorded like any other move.
func (m *Machine) ChangeStage(ctx context.Context, actor model.Actor, applicationID, jobID, toStageID uuid.UUID, notes *string) (*model.Application, error) {
	var event StageChanged

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app model.Application
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND job_id = ? AND company_id = ?", applicationID, jobID, actor.CompanyID).
			First(&app).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("application %s not found", applicationID)
		}
		if err != nil {
			return apperror.Storage(err, "load application")
		}

		to, err := m.pipeline.StageForJob(ctx, tx, jobID, toStageID)
		if err != nil {
			return err
		}

		if app.CurrentStageID != nil && *app.CurrentStageID == to.ID {
			return apperror.Validation("application is already in stage %q", to.Name)
		}

		var from *uuid.UUID
		if app.CurrentStageID != nil {
			id := *app.CurrentStageID
			from = &id
		}

		if _, err := m.ledger.Append(ctx, tx, ledger.Entry{
			ApplicationID: app.ID,
			JobID:         app.JobID,
			CompanyID:     app.CompanyID,
			FromStageID:   from,
			ToStageID:     to.ID,
			ChangedByID:   actor.ID,
			Notes:         notes,
		}); err != nil {
			return err
		}

		err = tx.Model(&app).Update("current_stage_id", to.ID).Error
		if database.IsForeignKeyViolation(err) {
			return apperror.Conflict("stage %q was removed from the pipeline; reload the job and pick another stage", to.Name)
		}
		if err != nil {
			return apperror.Storage(err, "update current stage")
		}

		event = StageChanged{
			ApplicationID: app.ID,
			JobID:         app.JobID,
			CompanyID:     app.CompanyID,
			FromStageID:   from,
			ToStageID:     to.ID,
			ChangedByID:   actor.ID,
		}
		return nil
	})
	if err != nil {
		err = apperror.From(err, "change stage")
		m.metrics.StageTransitions.WithLabelValues(metrics.ResultOf(err, isRejection)).Inc()
		if apperror.IsStorage(err) {
			m.log.WithError(err).WithField("application_id", applicationID).Error("stage change failed")
		}
		return nil, err
	}
	m.metrics.StageTransitions.WithLabelValues(metrics.ResultOK).Inc()

	m.publish(ctx, notify.ApplicationStageChanged, event)

	return m.Get(ctx, actor.CompanyID, jobID, applicationID)
}

// Get returns an application of companyID with its current stage and its
// history, newest first
func (m *Machine) Get(ctx context.Context, companyID, jobID, applicationID uuid.UUID) (*model.Application, error) {
	var app model.Application
	err := m.db.WithContext(ctx).
		Preload("CurrentStage").
		Where("id = ? AND job_id = ? AND company_id = ?", applicationID, jobID, companyID).
		First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("application %s not found", applicationID)
	}
	if err != nil {
		return nil, apperror.Storage(err, "load application")
	}
	if app.History, err = m.ledger.History(ctx, m.db, app.ID); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns the applications of a job, most recent first
func (m *Machine) List(ctx context.Context, companyID, jobID uuid.UUID) ([]model.Application, error) {
	var apps []model.Application
	if err := m.db.WithContext(ctx).
		Preload("CurrentStage").
		Where("job_id = ? AND company_id = ?", jobID, companyID).
		Order("applied_at DESC").
		Find(&apps).Error; err != nil {
		return nil, apperror.Storage(err, "list applications")
	}
	return apps, nil
}

func (m *Machine) publish(ctx context.Context, eventType string, payload any) {
	if err := m.sink.Publish(ctx, eventType, payload); err != nil {
		m.metrics.NotifyFailures.WithLabelValues(eventType).Inc()
		m.log.WithError(err).WithField("event", eventType).Warn("failed to publish event")
	}
}

func isRejection(err error) bool {
	return apperror.IsValidation(err) || apperror.IsNotFound(err) || apperror.IsConflict(err)
}

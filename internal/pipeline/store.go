package pipeline

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/changelog"
	"TalentPipe-backend/internal/ledger"
	"TalentPipe-backend/internal/metrics"
	"TalentPipe-backend/internal/model"
)

// Store owns the persisted stage and question lists of jobs.
// Mutating methods run inside the caller's transaction.
type Store struct {
	changes *changelog.Recorder
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// NewStore creates a Store
func NewStore(changes *changelog.Recorder, log *logrus.Logger) *Store {
	return &Store{
		changes: changes,
		metrics: metrics.Get(),
		log:     log.WithField("component", "pipeline"),
	}
}

// Stages returns a job's stages in pipeline order
func (s *Store) Stages(ctx context.Context, db *gorm.DB, jobID uuid.UUID) ([]model.Stage, error) {
	var stages []model.Stage
	if err := db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("order_index ASC, name ASC").
		Find(&stages).Error; err != nil {
		return nil, apperror.Storage(err, "list stages")
	}
	return stages, nil
}

// Questions returns a job's questions in display order
func (s *Store) Questions(ctx context.Context, db *gorm.DB, jobID uuid.UUID) ([]model.Question, error) {
	var questions []model.Question
	if err := db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("order_index ASC").
		Find(&questions).Error; err != nil {
		return nil, apperror.Storage(err, "list questions")
	}
	return questions, nil
}

// StageForJob loads a stage scoped by its job. A stage of another job is
// never a valid target, so absence is a validation error.
func (s *Store) StageForJob(ctx context.Context, db *gorm.DB, jobID, stageID uuid.UUID) (*model.Stage, error) {
	var stage model.Stage
	err := db.WithContext(ctx).Where("id = ? AND job_id = ?", stageID, jobID).First(&stage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Validation("stage %s does not belong to job %s", stageID, jobID)
	}
	if err != nil {
		return nil, apperror.Storage(err, "load stage")
	}
	return &stage, nil
}

// FirstActiveStage returns the lowest order active stage of a job, or nil
// when the job has none
func (s *Store) FirstActiveStage(ctx context.Context, db *gorm.DB, jobID uuid.UUID) (*model.Stage, error) {
	var stages []model.Stage
	if err := db.WithContext(ctx).
		Where("job_id = ? AND is_active = ?", jobID, true).
		Order("order_index ASC, name ASC").
		Limit(1).
		Find(&stages).Error; err != nil {
		return nil, apperror.Storage(err, "load first active stage")
	}
	if len(stages) == 0 {
		return nil, nil
	}
	return &stages[0], nil
}

// ReconcileQuestions replaces every question of job with desired.
// An empty desired list leaves the questions untouched.
func (s *Store) ReconcileQuestions(ctx context.Context, tx *gorm.DB, job *model.Job, actor model.Actor, desired []QuestionInput) error {
	if len(desired) == 0 {
		return nil
	}
	tx = tx.WithContext(ctx)

	if err := tx.Where("job_id = ?", job.ID).Delete(&model.Question{}).Error; err != nil {
		return s.fail("questions", apperror.Storage(err, "delete questions"))
	}
	rows := PlanQuestions(job.ID, desired)
	if err := tx.Create(&rows).Error; err != nil {
		return s.fail("questions", apperror.Storage(err, "insert questions"))
	}
	if err := s.changes.Record(ctx, tx, job, actor, changelog.Entry{
		Field:       "questions",
		Description: changelog.QuestionsUpdated,
	}); err != nil {
		return s.fail("questions", err)
	}

	s.metrics.Reconciliations.WithLabelValues("questions", metrics.ResultOK).Inc()
	return nil
}

// ReconcileStages makes the persisted stages of job match desired without
// recreating unchanged rows. Stages left out of desired are deleted, unless an
// application currently sits in one of them, in which case nothing is applied
// and a conflict is returned. An empty desired list is a no-op.
func (s *Store) ReconcileStages(ctx context.Context, tx *gorm.DB, job *model.Job, actor model.Actor, desired []StageInput) (StagePlan, error) {
	if len(desired) == 0 {
		return StagePlan{}, nil
	}
	tx = tx.WithContext(ctx)

	// rows stay locked until commit; moving an application into one of them
	// needs a key-share lock for the FK check and waits for us
	var existing []model.Stage
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("job_id = ?", job.ID).
		Order("order_index ASC, name ASC").
		Find(&existing).Error; err != nil {
		return StagePlan{}, s.fail("stages", apperror.Storage(err, "load stages"))
	}

	plan, err := PlanStages(job.ID, existing, desired)
	if err != nil {
		return StagePlan{}, s.fail("stages", err)
	}

	if len(plan.Deletes) > 0 {
		if err := s.deleteStages(ctx, tx, plan.Deletes); err != nil {
			return StagePlan{}, s.fail("stages", err)
		}
	}

	for _, u := range plan.Updates {
		if err := tx.Model(&model.Stage{}).
			Where("id = ? AND job_id = ?", u.ID, job.ID).
			Updates(map[string]interface{}{
				"name":        u.Name,
				"description": u.Description,
				"order_index": u.OrderIndex,
				"is_active":   u.IsActive,
			}).Error; err != nil {
			return StagePlan{}, s.fail("stages", apperror.Storage(err, "update stage"))
		}
	}

	if len(plan.Creates) > 0 {
		if err := tx.Create(&plan.Creates).Error; err != nil {
			return StagePlan{}, s.fail("stages", apperror.Storage(err, "insert stages"))
		}
	}

	if plan.Changed() {
		if err := s.changes.Record(ctx, tx, job, actor, changelog.Entry{
			Field:       "stages",
			Description: changelog.StagesUpdated,
		}); err != nil {
			return StagePlan{}, s.fail("stages", err)
		}
	}

	result := metrics.ResultOK
	if plan.Empty() {
		result = metrics.ResultNoop
	}
	s.metrics.Reconciliations.WithLabelValues("stages", result).Inc()

	s.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"updated": len(plan.Updates),
		"created": len(plan.Creates),
		"deleted": len(plan.Deletes),
	}).Debug("stages reconciled")

	return plan, nil
}

// deleteStages removes stages no application sits in, purging the ledger rows
// that reference them first
func (s *Store) deleteStages(ctx context.Context, tx *gorm.DB, stages []model.Stage) error {
	ids := make([]uuid.UUID, 0, len(stages))
	names := make(map[uuid.UUID]string, len(stages))
	for _, st := range stages {
		ids = append(ids, st.ID)
		names[st.ID] = st.Name
	}

	var busy []uuid.UUID
	if err := tx.Model(&model.Application{}).
		Distinct("current_stage_id").
		Where("current_stage_id IN ?", ids).
		Pluck("current_stage_id", &busy).Error; err != nil {
		return apperror.Storage(err, "check stages in use")
	}
	if len(busy) > 0 {
		inUse := make([]string, 0, len(busy))
		for _, id := range busy {
			inUse = append(inUse, names[id])
		}
		return apperror.Conflict(
			"cannot delete a stage referenced by an in-progress candidate (%s); move those candidates to another stage first",
			strings.Join(inUse, ", "))
	}

	if _, err := ledger.PurgeForStages(ctx, tx, ids); err != nil {
		return err
	}
	if err := tx.Where("id IN ?", ids).Delete(&model.Stage{}).Error; err != nil {
		return apperror.Storage(err, "delete stages")
	}
	return nil
}

func (s *Store) fail(kind string, err error) error {
	s.metrics.Reconciliations.WithLabelValues(kind, metrics.ResultOf(err, apperror.IsConflict)).Inc()
	return err
}

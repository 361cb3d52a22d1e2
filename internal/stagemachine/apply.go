package stagemachine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/database"
	"TalentPipe-backend/internal/model"
	"TalentPipe-backend/internal/notify"
	"TalentPipe-backend/internal/scoring"
)

// ApplyInput is a candidate's submission
type ApplyInput struct {
	// Resume is stored as-is; ResumeExt (".pdf") names the object
	Resume    []byte
	ResumeExt string
	// ResumeText is the plain text the scoring oracle reads, when known
	ResumeText string
	Responses  []model.QuestionResponse
}

// ApplicationCreated is the payload of notify.ApplicationCreated
type ApplicationCreated struct {
	ApplicationID  uuid.UUID  `json:"application_id"`
	JobID          uuid.UUID  `json:"job_id"`
	CompanyID      uuid.UUID  `json:"company_id"`
	CandidateID    uuid.UUID  `json:"candidate_id"`
	CurrentStageID *uuid.UUID `json:"current_stage_id"`
}

// Apply creates candidateID's application to a published job. The
// application starts in the job's lowest order active stage, or in no stage
// when the job has none. The created event is published after commit and
// scoring runs in the background; neither fails the call.
func (m *Machine) Apply(ctx context.Context, candidateID, jobID uuid.UUID, in ApplyInput) (*model.Application, error) {
	var job model.Job
	err := m.db.WithContext(ctx).Preload("Questions").First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("job %s not found", jobID)
	}
	if err != nil {
		return nil, apperror.Storage(err, "load job")
	}

	if job.Status != model.JobStatusPublished {
		return nil, apperror.Validation("job is not accepting applications (status %s)", job.Status)
	}
	if job.ExpiresAt != nil && job.ExpiresAt.Before(time.Now()) {
		return nil, apperror.Validation("job stopped accepting applications on %s", job.ExpiresAt.Format(time.DateOnly))
	}
	if err := checkResponses(job.Questions, in.Responses); err != nil {
		return nil, err
	}

	if err := m.checkNotApplied(ctx, job.ID, candidateID); err != nil {
		return nil, err
	}

	app := model.Application{
		ID:                uuid.New(),
		JobID:             job.ID,
		CompanyID:         job.CompanyID,
		CandidateID:       candidateID,
		QuestionResponses: in.Responses,
	}

	// keyed by the new application; existing resumes are never rewritten
	var resumeKey string
	if len(in.Resume) > 0 {
		if m.blobs == nil {
			return nil, apperror.Validation("resume uploads are disabled")
		}
		resumeKey = job.ID.String() + "/" + app.ID.String() + strings.ToLower(in.ResumeExt)
		app.ResumeURL, err = m.blobs.Put(ctx, in.Resume, m.bucket, resumeKey)
		if err != nil {
			m.log.WithError(err).Error("failed to store resume")
			return nil, apperror.Storage(err, "store resume")
		}
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, err := m.pipeline.FirstActiveStage(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if first != nil {
			app.CurrentStageID = &first.ID
		}

		err = tx.Omit("CurrentStage", "History").Create(&app).Error
		if database.IsUniqueViolation(err, "idx_applications_job_candidate") {
			return apperror.Conflict("candidate has already applied to this job")
		}
		if database.IsForeignKeyViolation(err) {
			return apperror.Conflict("the job pipeline changed while applying; try again")
		}
		if err != nil {
			return apperror.Storage(err, "create application")
		}
		return nil
	})
	if err != nil {
		if resumeKey != "" {
			m.discardResume(resumeKey)
		}
		err = apperror.From(err, "apply")
		if apperror.IsStorage(err) {
			m.log.WithError(err).WithField("job_id", jobID).Error("apply failed")
		}
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"job_id":         job.ID,
	}).Info("application created")

	m.pending.Add(1)
	go func(ctx context.Context, job model.Job, appID uuid.UUID, resumeURL string) {
		defer m.pending.Done()
		m.score(ctx, &job, appID, resumeURL, in)
	}(context.WithoutCancel(ctx), job, app.ID, app.ResumeURL)

	m.publish(ctx, notify.ApplicationCreated, ApplicationCreated{
		ApplicationID:  app.ID,
		JobID:          app.JobID,
		CompanyID:      app.CompanyID,
		CandidateID:    app.CandidateID,
		CurrentStageID: app.CurrentStageID,
	})

	return m.Get(ctx, job.CompanyID, job.ID, app.ID)
}

// checkNotApplied runs before anything is stored. The unique index still
// settles races between concurrent submissions.
func (m *Machine) checkNotApplied(ctx context.Context, jobID, candidateID uuid.UUID) error {
	var n int64
	if err := m.db.WithContext(ctx).Model(&model.Application{}).
		Where("job_id = ? AND candidate_id = ?", jobID, candidateID).
		Count(&n).Error; err != nil {
		return apperror.Storage(err, "check existing application")
	}
	if n > 0 {
		return apperror.Conflict("candidate has already applied to this job")
	}
	return nil
}

// discardResume removes the object of an intake that did not commit
func (m *Machine) discardResume(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.blobs.Delete(ctx, m.bucket, key); err != nil {
		m.log.WithError(err).WithField("key", key).Warn("failed to discard resume of failed application")
	}
}

// checkResponses rejects submissions leaving a required question unanswered.
// Responses are matched on the question text.
func checkResponses(questions []model.Question, responses []model.QuestionResponse) error {
	answered := make(map[string]struct{}, len(responses))
	for _, r := range responses {
		if strings.TrimSpace(r.Answer) != "" {
			answered[strings.TrimSpace(r.Question)] = struct{}{}
		}
	}
	for _, q := range questions {
		if !q.IsRequired {
			continue
		}
		if _, ok := answered[strings.TrimSpace(q.Question)]; !ok {
			return apperror.Validation("question %q requires an answer", q.Question)
		}
	}
	return nil
}

// Wait blocks until the scoring started by earlier Apply calls is done
func (m *Machine) Wait() {
	m.pending.Wait()
}

// score asks the oracle for a verdict and stores it. Failures are logged only.
func (m *Machine) score(ctx context.Context, job *model.Job, appID uuid.UUID, resumeURL string, in ApplyInput) {
	ctx, cancel := context.WithTimeout(ctx, m.scoreTimeout)
	defer cancel()

	responses := make([]scoring.Response, 0, len(in.Responses))
	for _, r := range in.Responses {
		responses = append(responses, scoring.Response{Question: r.Question, Answer: r.Answer})
	}

	log := m.log.WithField("application_id", appID)

	res, err := m.oracle.Evaluate(ctx, scoring.Request{
		ResumeText:   in.ResumeText,
		ResumeURL:    resumeURL,
		JobTitle:     job.Title,
		Description:  job.Description,
		Requirements: job.Requirements,
		Responses:    responses,
	})
	if errors.Is(err, scoring.ErrDisabled) {
		return
	}
	if err != nil {
		m.metrics.ScoringFailures.Inc()
		log.WithError(err).Warn("scoring failed")
		return
	}

	details := res.Details
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}
	now := time.Now()
	if err := m.db.WithContext(ctx).Model(&model.Application{}).
		Where("id = ?", appID).
		Updates(map[string]interface{}{
			"overall_score":            res.OverallScore,
			"education_score":          res.EducationScore,
			"experience_score":         res.ExperienceScore,
			"question_responses_score": res.QuestionResponsesScore,
			"score_provider":           res.Provider,
			"score_model":              res.Model,
			"score_details":            datatypes.JSON(details),
			"evaluated_at":             now,
		}).Error; err != nil {
		m.metrics.ScoringFailures.Inc()
		log.WithError(err).Warn("failed to store score")
	}
}

// Package lifecycle creates and edits jobs and drives their status.
package lifecycle

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/changelog"
	"TalentPipe-backend/internal/database"
	"TalentPipe-backend/internal/metrics"
	"TalentPipe-backend/internal/model"
	"TalentPipe-backend/internal/notify"
	"TalentPipe-backend/internal/pipeline"
	"TalentPipe-backend/internal/slug"
)

const slugIndex = "idx_jobs_slug"

// errSlugTaken marks an insert that lost a slug race; Create retries on it
var errSlugTaken = errors.New("slug taken")

// Deps are the collaborators of a Manager
type Deps struct {
	DB       *gorm.DB
	Pipeline *pipeline.Store
	Changes  *changelog.Recorder
	Sink     notify.Sink
	// SlugAttempts bounds how many slugs Create tries before giving up
	SlugAttempts int
	Log          *logrus.Logger
}

// Manager is the job lifecycle manager
type Manager struct {
	db           *gorm.DB
	pipeline     *pipeline.Store
	changes      *changelog.Recorder
	sink         notify.Sink
	validate     *validator.Validate
	slugAttempts int
	now          func() time.Time
	metrics      *metrics.Metrics
	log          *logrus.Entry
}

// New creates a Manager
func New(d Deps) *Manager {
	attempts := d.SlugAttempts
	if attempts < 1 {
		attempts = 3
	}
	sink := d.Sink
	if sink == nil {
		sink = notify.NewLog(d.Log)
	}
	return &Manager{
		db:           d.DB,
		pipeline:     d.Pipeline,
		changes:      d.Changes,
		sink:         sink,
		validate:     newValidator(),
		slugAttempts: attempts,
		now:          time.Now,
		metrics:      metrics.Get(),
		log:          d.Log.WithField("component", "lifecycle"),
	}
}

// StatusChanged is the payload of job.<action> events
type StatusChanged struct {
	JobID       uuid.UUID       `json:"job_id"`
	CompanyID   uuid.UUID       `json:"company_id"`
	Slug        string          `json:"slug"`
	From        model.JobStatus `json:"from"`
	To          model.JobStatus `json:"to"`
	ChangedByID uuid.UUID       `json:"changed_by_id"`
}

// Create stores a DRAFT job with its initial pipeline and a slug no other job
// uses. A slug lost to a concurrent insert is recomputed and retried.
func (m *Manager) Create(ctx context.Context, actor model.Actor, in CreateInput) (*model.Job, error) {
	if err := m.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	var job model.Job
	for attempt := 1; ; attempt++ {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return m.create(ctx, tx, actor, in, &job)
		})
		if err == nil {
			break
		}
		if errors.Is(err, errSlugTaken) {
			if attempt < m.slugAttempts {
				m.log.WithField("attempt", attempt).Debug("slug taken, retrying")
				continue
			}
			return nil, apperror.Conflict("could not reserve a unique slug for %q, try again", in.Title)
		}
		return nil, m.storageFailure(apperror.From(err, "create job"), "create job")
	}

	m.log.WithFields(logrus.Fields{"job_id": job.ID, "slug": job.Slug}).Info("job created")
	return m.Get(ctx, actor.CompanyID, job.ID)
}

func (m *Manager) create(ctx context.Context, tx *gorm.DB, actor model.Actor, in CreateInput, job *model.Job) error {
	if in.DepartmentID != nil {
		if err := checkDepartment(ctx, tx, actor.CompanyID, *in.DepartmentID); err != nil {
			return err
		}
	}

	taken, err := takenSlugs(ctx, tx, slug.Base(in.SlugPrefix, in.Title))
	if err != nil {
		return err
	}

	*job = model.Job{
		ID:           uuid.New(),
		CompanyID:    actor.CompanyID,
		CreatedByID:  actor.ID,
		DepartmentID: in.DepartmentID,
		EditableJobInfo: model.EditableJobInfo{
			Title:        in.Title,
			Description:  in.Description,
			Requirements: in.Requirements,
			Tags:         pq.StringArray(in.Tags),
			ExpiresAt:    in.ExpiresAt,
		},
		Slug:   slug.Generate(in.SlugPrefix, in.Title, taken),
		Status: model.JobStatusDraft,
	}

	err = tx.Omit(clause.Associations).Create(job).Error
	if database.IsUniqueViolation(err, slugIndex) {
		return errSlugTaken
	}
	if err != nil {
		return apperror.Storage(err, "insert job")
	}

	stages, err := pipeline.NewStages(job.ID, in.Stages)
	if err != nil {
		return err
	}
	if len(stages) > 0 {
		if err := tx.Create(&stages).Error; err != nil {
			return apperror.Storage(err, "insert stages")
		}
	}
	if questions := pipeline.PlanQuestions(job.ID, in.Questions); len(questions) > 0 {
		if err := tx.Create(&questions).Error; err != nil {
			return apperror.Storage(err, "insert questions")
		}
	}

	status := string(job.Status)
	return m.changes.Record(ctx, tx, job, actor, changelog.Entry{
		Field:       "status",
		NewValue:    &status,
		Description: changelog.JobCreated,
	})
}

// Update applies a partial edit of a job of actor's company. Every changed
// field gets its own change log entry; questions and stages are reconciled
// when sent. Fields, pipeline and log entries commit together or not at all.
func (m *Manager) Update(ctx context.Context, actor model.Actor, jobID uuid.UUID, in UpdateInput) (*model.Job, error) {
	if err := m.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(ctx, tx, actor.CompanyID, jobID)
		if err != nil {
			return err
		}

		d := newDiff()
		d.text("title", job.Title, in.Title)
		d.text("description", job.Description, in.Description)
		d.text("requirements", job.Requirements, in.Requirements)
		d.tags(job.Tags, in.Tags)
		d.expiresAt(job.ExpiresAt, in.ExpiresAt)

		if in.DepartmentID != nil {
			if *in.DepartmentID != uuid.Nil {
				if err := checkDepartment(ctx, tx, actor.CompanyID, *in.DepartmentID); err != nil {
					return err
				}
			}
			d.department(job.DepartmentID, *in.DepartmentID)
		}

		if in.Slug != nil {
			renamed := slug.Normalize(*in.Slug)
			if renamed == "" {
				return apperror.Validation("slug %q has no usable characters", *in.Slug)
			}
			if renamed != job.Slug {
				if err := checkSlugFree(ctx, tx, job.ID, renamed); err != nil {
					return err
				}
				d.text("slug", job.Slug, &renamed)
			}
		}

		if len(d.updates) > 0 {
			err := tx.Model(job).Updates(d.updates).Error
			if database.IsUniqueViolation(err, slugIndex) {
				return apperror.Conflict("slug %q is already used by another job", d.updates["slug"])
			}
			if err != nil {
				return apperror.Storage(err, "update job")
			}
			if err := m.changes.Record(ctx, tx, job, actor, d.entries...); err != nil {
				return err
			}
		}

		if err := m.pipeline.ReconcileQuestions(ctx, tx, job, actor, in.Questions); err != nil {
			return err
		}
		if _, err := m.pipeline.ReconcileStages(ctx, tx, job, actor, in.Stages); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, m.storageFailure(apperror.From(err, "update job"), "update job")
	}

	return m.Get(ctx, actor.CompanyID, jobID)
}

// Publish moves a DRAFT job to PUBLISHED and stamps publishedAt
func (m *Manager) Publish(ctx context.Context, actor model.Actor, jobID uuid.UUID) (*model.Job, error) {
	return m.transition(ctx, actor, jobID, ActionPublish)
}

// Pause moves a PUBLISHED job to PAUSED
func (m *Manager) Pause(ctx context.Context, actor model.Actor, jobID uuid.UUID) (*model.Job, error) {
	return m.transition(ctx, actor, jobID, ActionPause)
}

// Resume moves a PAUSED job back to PUBLISHED
func (m *Manager) Resume(ctx context.Context, actor model.Actor, jobID uuid.UUID) (*model.Job, error) {
	return m.transition(ctx, actor, jobID, ActionResume)
}

// Close moves a PUBLISHED job to CLOSED and stamps closedAt
func (m *Manager) Close(ctx context.Context, actor model.Actor, jobID uuid.UUID) (*model.Job, error) {
	return m.transition(ctx, actor, jobID, ActionClose)
}

// Transition applies action by name
func (m *Manager) Transition(ctx context.Context, actor model.Actor, jobID uuid.UUID, action Action) (*model.Job, error) {
	return m.transition(ctx, actor, jobID, action)
}

func (m *Manager) transition(ctx context.Context, actor model.Actor, jobID uuid.UUID, action Action) (*model.Job, error) {
	var event StatusChanged

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(ctx, tx, actor.CompanyID, jobID)
		if err != nil {
			return err
		}

		to, ok := Next(job.Status, action)
		if !ok {
			if from, known := action.Required(); known {
				return apperror.Validation("cannot %s a job in status %s; the job must be %s", action, job.Status, from)
			}
			return apperror.Validation("unknown job action %q", action)
		}

		now := m.now()
		updates := map[string]interface{}{"status": to}
		// first time only
		if to == model.JobStatusPublished && job.PublishedAt == nil {
			updates["published_at"] = now
		}
		if to == model.JobStatusClosed && job.ClosedAt == nil {
			updates["closed_at"] = now
		}

		from := job.Status
		if err := tx.Model(job).Updates(updates).Error; err != nil {
			return apperror.Storage(err, "update job status")
		}

		oldValue, newValue := string(from), string(to)
		if err := m.changes.Record(ctx, tx, job, actor, changelog.Entry{
			Field:       "status",
			OldValue:    &oldValue,
			NewValue:    &newValue,
			Description: changelog.StatusChanged,
		}); err != nil {
			return err
		}

		event = StatusChanged{
			JobID:       job.ID,
			CompanyID:   job.CompanyID,
			Slug:        job.Slug,
			From:        from,
			To:          to,
			ChangedByID: actor.ID,
		}
		return nil
	})
	if err != nil {
		err = apperror.From(err, string(action)+" job")
		m.metrics.StatusTransitions.WithLabelValues(string(action), metrics.ResultOf(err, isRejection)).Inc()
		return nil, m.storageFailure(err, string(action)+" job")
	}
	m.metrics.StatusTransitions.WithLabelValues(string(action), metrics.ResultOK).Inc()

	eventType := notify.JobPrefix + string(action)
	if err := m.sink.Publish(ctx, eventType, event); err != nil {
		m.metrics.NotifyFailures.WithLabelValues(eventType).Inc()
		m.log.WithError(err).WithField("event", eventType).Warn("failed to publish event")
	}

	return m.Get(ctx, actor.CompanyID, jobID)
}

// Get returns a job of companyID with its department, stages and questions
// in order
func (m *Manager) Get(ctx context.Context, companyID, jobID uuid.UUID) (*model.Job, error) {
	return m.find(ctx, "id = ? AND company_id = ?", jobID, companyID)
}

// GetPublished returns a PUBLISHED job by slug, for any caller
func (m *Manager) GetPublished(ctx context.Context, jobSlug string) (*model.Job, error) {
	return m.find(ctx, "slug = ? AND status = ?", jobSlug, model.JobStatusPublished)
}

// ChangeLog returns the audited edits of a job, newest first
func (m *Manager) ChangeLog(ctx context.Context, companyID, jobID uuid.UUID) ([]model.JobChangeLog, error) {
	var n int64
	if err := m.db.WithContext(ctx).Model(&model.Job{}).
		Where("id = ? AND company_id = ?", jobID, companyID).
		Count(&n).Error; err != nil {
		return nil, apperror.Storage(err, "load job")
	}
	if n == 0 {
		return nil, apperror.NotFound("job %s not found", jobID)
	}
	return m.changes.List(ctx, m.db, jobID)
}

// PreviewSlug returns the slug Create would currently give a job. The result
// is not reserved.
func (m *Manager) PreviewSlug(ctx context.Context, prefix *string, title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", apperror.Validation("title is required")
	}
	taken, err := takenSlugs(ctx, m.db, slug.Base(prefix, title))
	if err != nil {
		return "", err
	}
	return slug.Generate(prefix, title, taken), nil
}

func (m *Manager) find(ctx context.Context, query string, args ...interface{}) (*model.Job, error) {
	var job model.Job
	err := m.db.WithContext(ctx).
		Preload("Department").
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, name ASC")
		}).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Where(query, args...).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("job not found")
	}
	if err != nil {
		return nil, apperror.Storage(err, "load job")
	}
	return &job, nil
}

func (m *Manager) storageFailure(err error, op string) error {
	if apperror.IsStorage(err) {
		m.log.WithError(err).Error(op + " failed")
	}
	return err
}

func lockJob(ctx context.Context, tx *gorm.DB, companyID, jobID uuid.UUID) (*model.Job, error) {
	var job model.Job
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND company_id = ?", jobID, companyID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("job %s not found", jobID)
	}
	if err != nil {
		return nil, apperror.Storage(err, "load job")
	}
	return &job, nil
}

func checkDepartment(ctx context.Context, tx *gorm.DB, companyID, departmentID uuid.UUID) error {
	var n int64
	if err := tx.WithContext(ctx).Model(&model.Department{}).
		Where("id = ? AND company_id = ?", departmentID, companyID).
		Count(&n).Error; err != nil {
		return apperror.Storage(err, "load department")
	}
	if n == 0 {
		return apperror.Validation("department %s does not belong to your company", departmentID)
	}
	return nil
}

// takenSlugs returns the slugs that collide with base or one of its numbered
// variants
func takenSlugs(ctx context.Context, db *gorm.DB, base string) (map[string]struct{}, error) {
	var slugs []string
	if err := db.WithContext(ctx).Model(&model.Job{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &slugs).Error; err != nil {
		return nil, apperror.Storage(err, "load slugs")
	}
	return slug.Set(slugs...), nil
}

func checkSlugFree(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, s string) error {
	var n int64
	if err := tx.WithContext(ctx).Model(&model.Job{}).
		Where("slug = ? AND id <> ?", s, jobID).
		Count(&n).Error; err != nil {
		return apperror.Storage(err, "check slug")
	}
	if n > 0 {
		return apperror.Conflict("slug %q is already used by another job", s)
	}
	return nil
}

func isRejection(err error) bool {
	return apperror.IsValidation(err) || apperror.IsNotFound(err) || apperror.IsConflict(err)
}

// diff collects column updates and matching change log entries
type diff struct {
	updates map[string]interface{}
	entries []changelog.Entry
}

func newDiff() *diff {
	return &diff{updates: map[string]interface{}{}}
}

func (d *diff) add(column string, value interface{}, oldText, newText *string) {
	d.updates[column] = value
	d.entries = append(d.entries, changelog.FieldChange(column, oldText, newText))
}

func (d *diff) text(column, current string, next *string) {
	if next == nil || *next == current {
		return
	}
	old, v := current, *next
	d.add(column, v, &old, &v)
}

func (d *diff) tags(current pq.StringArray, next *[]string) {
	if next == nil || slices.Equal([]string(current), *next) {
		return
	}
	old, v := strings.Join(current, ", "), strings.Join(*next, ", ")
	d.add("tags", pq.StringArray(*next), &old, &v)
}

// expiresAt treats the zero time as "no expiration"
func (d *diff) expiresAt(current, next *time.Time) {
	if next == nil || (current != nil && current.Equal(*next)) {
		return
	}
	if next.IsZero() {
		if current == nil {
			return
		}
		old := current.Format(time.RFC3339)
		d.add("expires_at", nil, &old, nil)
		return
	}
	v := next.Format(time.RFC3339)
	var old *string
	if current != nil {
		s := current.Format(time.RFC3339)
		old = &s
	}
	d.add("expires_at", *next, old, &v)
}

// department treats uuid.Nil as "no department"
func (d *diff) department(current *uuid.UUID, next uuid.UUID) {
	if (current == nil && next == uuid.Nil) || (current != nil && *current == next) {
		return
	}
	var old, v *string
	var value interface{}
	if current != nil {
		s := current.String()
		old = &s
	}
	if next != uuid.Nil {
		s := next.String()
		v = &s
		value = next
	}
	d.add("department_id", value, old, v)
}

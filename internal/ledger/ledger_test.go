package ledger_test

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/changelog"
	"TalentPipe-backend/internal/database"
	"TalentPipe-backend/internal/ledger"
	"TalentPipe-backend/internal/model"
	"TalentPipe-backend/internal/pipeline"
)

var testDB *database.DBinstanceStruct

func TestMain(m *testing.M) {
	td, db, err := database.GetTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}
	testDB = db

	m.Run()

	if td != nil && td(context.Background()) != nil {
		log.Fatalf("could not teardown postgres container")
	}
}

func newLedger() *ledger.Ledger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return ledger.New(pipeline.NewStore(changelog.NewRecorder(), l), l)
}

func seed(t *testing.T, names ...string) (*model.Job, []model.Stage, *model.Application) {
	t.Helper()
	job := model.Job{
		CompanyID:       database.TestCompany1,
		CreatedByID:     database.TestRecruiter1.ID,
		EditableJobInfo: model.EditableJobInfo{Title: "QA Engineer"},
		Slug:            "job-" + uuid.NewString(),
		Status:          model.JobStatusPublished,
	}
	require.NoError(t, testDB.Create(&job).Error)

	var inputs []pipeline.StageInput
	for _, n := range names {
		inputs = append(inputs, pipeline.StageInput{Name: n})
	}
	stages, err := pipeline.NewStages(job.ID, inputs)
	require.NoError(t, err)
	require.NoError(t, testDB.Create(&stages).Error)

	app := model.Application{
		JobID:          job.ID,
		CompanyID:      job.CompanyID,
		CandidateID:    uuid.New(),
		CurrentStageID: &stages[0].ID,
	}
	require.NoError(t, testDB.Omit("CurrentStage", "History").Create(&app).Error)
	return &job, stages, &app
}

func entry(job *model.Job, app *model.Application, from *uuid.UUID, to uuid.UUID) ledger.Entry {
	return ledger.Entry{
		ApplicationID: app.ID,
		JobID:         job.ID,
		CompanyID:     job.CompanyID,
		FromStageID:   from,
		ToStageID:     to,
		ChangedByID:   database.TestRecruiter1.ID,
	}
}

func TestAppend_snapshotsStageNames(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job, stages, app := seed(t, "Screening", "Interview")

	row, err := l.Append(ctx, testDB.DB, entry(job, app, &stages[0].ID, stages[1].ID))
	require.NoError(t, err)
	require.NotNil(t, row.FromStageName)
	assert.Equal(t, "Screening", *row.FromStageName)
	assert.Equal(t, "Interview", row.ToStageName)

	// renaming the stage leaves the recorded name alone
	require.NoError(t, testDB.Model(&model.Stage{}).Where("id = ?", stages[1].ID).Update("name", "Tech talk").Error)
	history, err := l.History(ctx, testDB.DB, app.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Interview", history[0].ToStageName)
}

func TestAppend_withoutOrigin(t *testing.T) {
	job, stages, app := seed(t, "Screening")

	row, err := newLedger().Append(context.Background(), testDB.DB, entry(job, app, nil, stages[0].ID))
	require.NoError(t, err)
	assert.Nil(t, row.FromStageID)
	assert.Nil(t, row.FromStageName)
}

func TestAppend_stageOfAnotherJob(t *testing.T) {
	job, _, app := seed(t, "Screening")
	_, otherStages, _ := seed(t, "Elsewhere")

	_, err := newLedger().Append(context.Background(), testDB.DB, entry(job, app, nil, otherStages[0].ID))
	assert.True(t, apperror.IsValidation(err), "got %v", err)

	var n int64
	require.NoError(t, testDB.Model(&model.StageTransitionHistory{}).Where("application_id = ?", app.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestHistory_newestFirst(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job, stages, app := seed(t, "A", "B", "C")

	_, err := l.Append(ctx, testDB.DB, entry(job, app, &stages[0].ID, stages[1].ID))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = l.Append(ctx, testDB.DB, entry(job, app, &stages[1].ID, stages[2].ID))
	require.NoError(t, err)

	history, err := l.History(ctx, testDB.DB, app.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "C", history[0].ToStageName)
	assert.Equal(t, "B", history[1].ToStageName)
}

func TestHistory_sameTimestampKeepsInsertOrder(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job, stages, app := seed(t, "A", "B", "C", "D")

	for i := 1; i < len(stages); i++ {
		_, err := l.Append(ctx, testDB.DB, entry(job, app, &stages[i-1].ID, stages[i].ID))
		require.NoError(t, err)
	}
	stamp := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, testDB.Model(&model.StageTransitionHistory{}).
		Where("application_id = ?", app.ID).
		Update("created_at", stamp).Error)

	history, err := l.History(ctx, testDB.DB, app.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "D", history[0].ToStageName)
	assert.Equal(t, "C", history[1].ToStageName)
	assert.Equal(t, "B", history[2].ToStageName)
	assert.Greater(t, history[0].Seq, history[1].Seq)
}

func TestPurgeForStages(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job, stages, app := seed(t, "A", "B", "C")

	_, err := l.Append(ctx, testDB.DB, entry(job, app, &stages[0].ID, stages[1].ID))
	require.NoError(t, err)
	_, err = l.Append(ctx, testDB.DB, entry(job, app, &stages[1].ID, stages[2].ID))
	require.NoError(t, err)
	_, err = l.Append(ctx, testDB.DB, entry(job, app, &stages[2].ID, stages[0].ID))
	require.NoError(t, err)

	// A appears in the first row as origin and in the last as destination
	n, err := ledger.PurgeForStages(ctx, testDB.DB, []uuid.UUID{stages[0].ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	history, err := l.History(ctx, testDB.DB, app.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "C", history[0].ToStageName)

	n, err = ledger.PurgeForStages(ctx, testDB.DB, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

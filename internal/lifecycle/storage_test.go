package lifecycle

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"TalentPipe-backend/internal/apperror"
	"TalentPipe-backend/internal/changelog"
	"TalentPipe-backend/internal/database"
	"TalentPipe-backend/internal/pipeline"
)

func newMockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	changes := changelog.NewRecorder()
	return New(Deps{
		DB:       gdb,
		Pipeline: pipeline.NewStore(changes, l),
		Changes:  changes,
		Sink:     &recordingSink{},
		Log:      l,
	}), mock
}

func TestTransition_beginFailsIsStorageError(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection reset by peer"))

	_, err := m.Publish(context.Background(), database.TestRecruiter1, uuid.New())
	require.Error(t, err)
	assert.True(t, apperror.IsStorage(err))
	assert.Equal(t, "internal server error", apperror.Message(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_queryFailureRollsBack(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "jobs"`).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := m.Update(context.Background(), database.TestRecruiter1, uuid.New(), UpdateInput{Title: ptr("x")})
	require.Error(t, err)
	assert.True(t, apperror.IsStorage(err))
	assert.NotContains(t, apperror.Message(err), "deadlock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

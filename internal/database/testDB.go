package database

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"TalentPipe-backend/internal/config"
	m "TalentPipe-backend/internal/model"
)

var testDBInstance *DBinstanceStruct
var teardown func(context.Context, ...testcontainers.TerminateOption) error

// Exported test identities & seeded rows
var (
	TestCompany1 = uuid.MustParse("11111111-1111-4111-8111-111111111111")
	TestCompany2 = uuid.MustParse("22222222-2222-4222-8222-222222222222")

	TestRecruiter1 = m.Actor{ID: uuid.MustParse("aaaaaaaa-0000-4000-8000-000000000001"), CompanyID: TestCompany1}
	TestRecruiter2 = m.Actor{ID: uuid.MustParse("aaaaaaaa-0000-4000-8000-000000000002"), CompanyID: TestCompany2}

	TestCandidate1 = uuid.MustParse("cccccccc-0000-4000-8000-000000000001")
	TestCandidate2 = uuid.MustParse("cccccccc-0000-4000-8000-000000000002")

	TestDepartment1 m.Department
	TestDepartment2 m.Department
)

// GetTestDB starts a PostgreSQL test container and returns a teardown function,
// the DB instance, and any error encountered during setup.
func GetTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, *DBinstanceStruct, error) {

	if testDBInstance != nil && teardown != nil {
		return teardown, testDBInstance, nil
	}

	var (
		dbName = "database"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, nil, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), nat.Port("5432/tcp"))
	if err != nil {
		return dbContainer.Terminate, nil, err
	}

	opts := config.DatabaseOptions{
		Name:                dbName,
		UseConnectionString: true,
		ConnectionString: fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort.Port(), dbUser, dbPwd, dbName),
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	db, err := NewDBInstance(opts, log)
	if err != nil {
		return dbContainer.Terminate, nil, err
	}

	if err := seedTestData(db); err != nil {
		_ = dbContainer.Terminate(context.Background())
		return nil, nil, err
	}

	testDBInstance = db
	teardown = dbContainer.Terminate

	return dbContainer.Terminate, db, nil
}

// seedTestData inserts one department per test company
func seedTestData(db *DBinstanceStruct) error {
	departments := []m.Department{
		{CompanyID: TestCompany1, Name: "Engineering"},
		{CompanyID: TestCompany2, Name: "Operations"},
	}
	if err := db.Create(&departments).Error; err != nil {
		return err
	}
	TestDepartment1 = departments[0]
	TestDepartment2 = departments[1]
	return nil
}

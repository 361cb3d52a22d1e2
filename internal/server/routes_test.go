package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TalentPipe-backend/internal/auth"
	"TalentPipe-backend/internal/blob"
	"TalentPipe-backend/internal/changelog"
	"TalentPipe-backend/internal/config"
	"TalentPipe-backend/internal/database"
	"TalentPipe-backend/internal/ledger"
	"TalentPipe-backend/internal/lifecycle"
	"TalentPipe-backend/internal/pipeline"
	"TalentPipe-backend/internal/stagemachine"
	"TalentPipe-backend/internal/testutil"
)

var testDB *database.DBinstanceStruct

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
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

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l := logrus.New()
	l.SetOutput(io.Discard)
	changes := changelog.NewRecorder()
	store := pipeline.NewStore(changes, l)
	blobs := blob.NewDatabase(testDB.DB)

	s := &MyServer{
		cfg: &config.Configuration{
			AllowOrigins: []string{"http://localhost:3000"},
			RateLimitRPS: 1000,
			MetricsPath:  "/metrics",
		},
		Deps: Deps{
			DB: testDB,
			Jobs: lifecycle.New(lifecycle.Deps{
				DB:       testDB.DB,
				Pipeline: store,
				Changes:  changes,
				Log:      l,
			}),
			Applications: stagemachine.New(stagemachine.Deps{
				DB:       testDB.DB,
				Pipeline: store,
				Ledger:   ledger.New(store, l),
				Blobs:    blobs,
				Bucket:   "resumes",
				Log:      l,
			}),
			Blobs:       blobs,
			Signer:      testutil.Signer(),
			Revocations: auth.NewInMemoryRevocationStore(ctx, time.Minute),
			Log:         l,
		},
	}
	return s.RegisterRoutes()
}

func stageIDs(t *testing.T, job map[string]interface{}) []string {
	t.Helper()
	raw, ok := job["stages"].([]interface{})
	require.True(t, ok, "job has no stages: %v", job)
	ids := make([]string, 0, len(raw))
	for _, s := range raw {
		ids = append(ids, s.(map[string]interface{})["id"].(string))
	}
	return ids
}

func TestHiringFlow(t *testing.T) {
	r := newTestServer(t)
	engine := r.(*gin.Engine)
	recruiter := testutil.RecruiterToken(t, database.TestRecruiter1)
	candidate := testutil.CandidateToken(t, uuid.New())

	rec, job := testutil.MakeJSONRequest(gin.H{
		"title":  "Backend Engineer " + uuid.NewString()[:8],
		"stages": []gin.H{{"name": "Screening"}, {"name": "Interview"}, {"name": "Offer"}},
		"questions": []gin.H{
			{"question": "Why us?", "is_required": true},
		},
	}, recruiter, engine, "/api/v1/jobs", http.MethodPost)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "DRAFT", job["status"])
	jobID := job["id"].(string)
	jobSlug := job["slug"].(string)
	stages := stageIDs(t, job)
	require.Len(t, stages, 3)

	// drafts are not public and do not take applications
	rec, _ = testutil.MakeJSONRequest(nil, "", engine, "/api/v1/public/jobs/"+jobSlug, http.MethodGet)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = testutil.MakeJSONRequest(nil, recruiter, engine, "/api/v1/jobs/"+jobID+"/publish", http.MethodPost)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, public := testutil.MakeJSONRequest(nil, "", engine, "/api/v1/public/jobs/"+jobSlug, http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, jobID, public["id"])

	applyURL := "/api/v1/jobs/" + jobID + "/applications"
	rec, _ = testutil.MakeMultipartRequest(map[string]string{
		"responses": `[{"question":"Why us?","answer":""}]`,
	}, nil, candidate, engine, applyURL)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "blank required answer")

	rec, app := testutil.MakeMultipartRequest(map[string]string{
		"responses": `[{"question":"Why us?","answer":"Pipelines"}]`,
	}, []testutil.MultipartFile{{Field: "resume", Filename: "cv.pdf", Content: []byte("%PDF-1.4 resume")}},
		candidate, engine, applyURL)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, stages[0], app["current_stage_id"])
	appID := app["id"].(string)
	resumeURL := app["resume_url"].(string)

	rec, _ = testutil.MakeMultipartRequest(map[string]string{
		"responses": `[{"question":"Why us?","answer":"Again"}]`,
	}, []testutil.MultipartFile{{Field: "resume", Filename: "cv.pdf", Content: []byte("%PDF-1.4 replaced")}},
		candidate, engine, applyURL)
	assert.Equal(t, http.StatusConflict, rec.Code, "second application")

	// candidates cannot manage jobs
	rec, _ = testutil.MakeJSONRequest(nil, candidate, engine, applyURL, http.MethodGet)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = testutil.MakeJSONRequest(nil, recruiter, engine, applyURL, http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), appID)

	stageURL := fmt.Sprintf("%s/%s/stage", applyURL, appID)
	rec, moved := testutil.MakeJSONRequest(gin.H{"stage_id": stages[1], "notes": "good call"}, recruiter, engine, stageURL, http.MethodPost)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, stages[1], moved["current_stage_id"])
	assert.Len(t, moved["history"], 1)

	rec, _ = testutil.MakeJSONRequest(gin.H{"stage_id": stages[1]}, recruiter, engine, stageURL, http.MethodPost)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "already in stage")

	// the interview stage still holds the candidate
	rec, resp := testutil.MakeJSONRequest(gin.H{
		"stages": []gin.H{{"id": stages[0], "name": "Screening"}, {"id": stages[2], "name": "Offer"}},
	}, recruiter, engine, "/api/v1/jobs/"+jobID, http.MethodPatch)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, resp["error"], "Interview")

	req := httptest.NewRequest(http.MethodGet, resumeURL, nil)
	req.Header.Set("Authorization", "Bearer "+recruiter)
	fileRec := httptest.NewRecorder()
	engine.ServeHTTP(fileRec, req)
	require.Equal(t, http.StatusOK, fileRec.Code, fileRec.Body.String())
	assert.Equal(t, "%PDF-1.4 resume", fileRec.Body.String())
	assert.Equal(t, "application/pdf", fileRec.Header().Get("Content-Type"))

	other := testutil.RecruiterToken(t, database.TestRecruiter2)
	req = httptest.NewRequest(http.MethodGet, resumeURL, nil)
	req.Header.Set("Authorization", "Bearer "+other)
	fileRec = httptest.NewRecorder()
	engine.ServeHTTP(fileRec, req)
	assert.Equal(t, http.StatusNotFound, fileRec.Code, "other tenant")

	rec, _ = testutil.MakeJSONRequest(nil, recruiter, engine, "/api/v1/jobs/"+jobID+"/changelog", http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PUBLISHED")
}

func TestJobRoutes_otherTenant(t *testing.T) {
	r := newTestServer(t)
	engine := r.(*gin.Engine)

	rec, job := testutil.MakeJSONRequest(gin.H{"title": "Analyst " + uuid.NewString()[:8]},
		testutil.RecruiterToken(t, database.TestRecruiter1), engine, "/api/v1/jobs", http.MethodPost)
	require.Equal(t, http.StatusCreated, rec.Code)

	other := testutil.RecruiterToken(t, database.TestRecruiter2)
	rec, _ = testutil.MakeJSONRequest(nil, other, engine, "/api/v1/jobs/"+job["id"].(string), http.MethodGet)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = testutil.MakeJSONRequest(nil, other, engine, "/api/v1/jobs/"+job["id"].(string)+"/publish", http.MethodPost)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobRoutes_invalidTransition(t *testing.T) {
	r := newTestServer(t)
	engine := r.(*gin.Engine)
	recruiter := testutil.RecruiterToken(t, database.TestRecruiter1)

	rec, job := testutil.MakeJSONRequest(gin.H{"title": "Designer " + uuid.NewString()[:8]}, recruiter, engine, "/api/v1/jobs", http.MethodPost)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := testutil.MakeJSONRequest(nil, recruiter, engine, "/api/v1/jobs/"+job["id"].(string)+"/pause", http.MethodPost)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp["error"], "DRAFT")
}

func TestSlugPreview(t *testing.T) {
	r := newTestServer(t)
	engine := r.(*gin.Engine)
	recruiter := testutil.RecruiterToken(t, database.TestRecruiter1)

	rec, resp := testutil.MakeJSONRequest(nil, recruiter, engine, "/api/v1/slug/preview?title=Staff+Engineer+%C3%83&prefix=acme", http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `^acme-staff-engineer-a`, resp["slug"])

	rec, _ = testutil.MakeJSONRequest(nil, recruiter, engine, "/api/v1/slug/preview", http.MethodGet)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	r := newTestServer(t)
	engine := r.(*gin.Engine)
	recruiter := testutil.RecruiterToken(t, database.TestRecruiter1)

	rec, _ := testutil.MakeJSONRequest(nil, recruiter, engine, "/api/v1/auth/logout", http.MethodPost)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := testutil.MakeJSONRequest(gin.H{"title": "Anything"}, recruiter, engine, "/api/v1/jobs", http.MethodPost)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has been revoked", resp["error"])
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestServer(t)
	engine := r.(*gin.Engine)

	rec, resp := testutil.MakeJSONRequest(nil, "", engine, "/health", http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "up", resp["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	engine.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "http_requests_total")
}

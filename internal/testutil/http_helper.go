// Package testutil provides utility functions for testing HTTP handlers.
package testutil

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"TalentPipe-backend/internal/auth"
	"TalentPipe-backend/internal/model"
)

// TestSecret signs the tokens of handler tests
const TestSecret = "handler-test-secret"

// Signer returns the signer handler tests authenticate with
func Signer() *auth.Signer {
	return auth.NewSigner(TestSecret, time.Hour)
}

// RecruiterToken issues a recruiter token for actor
func RecruiterToken(t *testing.T, actor model.Actor) string {
	t.Helper()
	token, err := Signer().Issue(actor.ID, actor.CompanyID, auth.RoleRecruiter)
	require.NoError(t, err)
	return token
}

// CandidateToken issues a candidate token for candidateID
func CandidateToken(t *testing.T, candidateID uuid.UUID) string {
	t.Helper()
	token, err := Signer().Issue(candidateID, uuid.Nil, auth.RoleCandidate)
	require.NoError(t, err)
	return token
}

// MakeJSONRequest is a helper function for making JSON requests in tests.
// A nil body sends no payload.
func MakeJSONRequest(body any, authToken string, r *gin.Engine, endpoint string, method string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}

	req, _ := http.NewRequest(method, endpoint, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	return serve(r, req)
}

// MultipartFile is one file part of MakeMultipartRequest
type MultipartFile struct {
	Field    string
	Filename string
	Content  []byte
}

// MakeMultipartRequest sends fields and files as multipart/form-data
func MakeMultipartRequest(fields map[string]string, files []MultipartFile, authToken string, r *gin.Engine, endpoint string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	for _, f := range files {
		part, _ := w.CreateFormFile(f.Field, f.Filename)
		_, _ = part.Write(f.Content)
	}
	_ = w.Close()

	req, _ := http.NewRequest(http.MethodPost, endpoint, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	return serve(r, req)
}

func serve(r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	resp := map[string]interface{}{}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)

	return rec, resp
}

// StringPtr is a helper function to get a pointer to a string
func StringPtr(s string) *string {
	return &s
}

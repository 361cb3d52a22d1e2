package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TalentPipe-backend/internal/auth"
	"TalentPipe-backend/internal/model"
	"TalentPipe-backend/internal/utilities"
)

const testSecret = "middleware-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, checkActorHandler)
	r.GET("/protected", handlers...)
	return r
}

func checkActorHandler(c *gin.Context) {
	actor, err := utilities.ExtractActor(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "id": actor.ID, "company": actor.CompanyID})
}

func doGet(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	var resp utilities.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func signRaw(t *testing.T, claims auth.Claims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestRequireAuth_Success(t *testing.T) {
	signer := auth.NewSigner(testSecret, time.Hour)
	userID, companyID := uuid.New(), uuid.New()
	token, err := signer.Issue(userID, companyID, auth.RoleRecruiter)
	require.NoError(t, err)

	rec := doGet(protectedEngine(RequireAuth(signer)), token)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ID      uuid.UUID `json:"id"`
		Company uuid.UUID `json:"company"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, userID, body.ID)
	assert.Equal(t, companyID, body.Company)
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	rec := doGet(protectedEngine(RequireAuth(auth.NewSigner(testSecret, time.Hour))), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireAuth_Expired(t *testing.T) {
	token := signRaw(t, auth.Claims{
		Role: auth.RoleCandidate,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.JwtIssuer,
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	rec := doGet(protectedEngine(RequireAuth(auth.NewSigner(testSecret, time.Hour))), token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Access token expired", errorOf(t, rec))
}

func TestRequireAuth_WrongIssuer(t *testing.T) {
	token := signRaw(t, auth.Claims{
		Role: auth.RoleCandidate,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	rec := doGet(protectedEngine(RequireAuth(auth.NewSigner(testSecret, time.Hour))), token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token issuer", errorOf(t, rec))
}

func TestRequireAuth_RecruiterWithoutCompany(t *testing.T) {
	token := signRaw(t, auth.Claims{
		Role: auth.RoleRecruiter,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.JwtIssuer,
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	rec := doGet(protectedEngine(RequireAuth(auth.NewSigner(testSecret, time.Hour))), token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_BadSignature(t *testing.T) {
	token, err := auth.NewSigner("other-secret", time.Hour).Issue(uuid.New(), uuid.Nil, auth.RoleCandidate)
	require.NoError(t, err)

	rec := doGet(protectedEngine(RequireAuth(auth.NewSigner(testSecret, time.Hour))), token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.HasPrefix(errorOf(t, rec), "Failed to validate token"))
}

func TestCheckRole(t *testing.T) {
	signer := auth.NewSigner(testSecret, time.Hour)
	r := protectedEngine(RequireAuth(signer), CheckRole(auth.RoleRecruiter))

	recruiter, err := signer.Issue(uuid.New(), uuid.New(), auth.RoleRecruiter)
	require.NoError(t, err)
	candidate, err := signer.Issue(uuid.New(), uuid.Nil, auth.RoleCandidate)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, doGet(r, recruiter).Code)

	rec := doGet(r, candidate)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "User doesn't have permission to access", errorOf(t, rec))
}

func TestRevocationCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signer := auth.NewSigner(testSecret, time.Hour)
	store := auth.NewInMemoryRevocationStore(ctx, time.Minute)
	log := logrus.New()
	log.SetOutput(io.Discard)
	r := protectedEngine(RequireAuth(signer), RevocationCheck(store, log))

	token, err := signer.Issue(uuid.New(), uuid.Nil, auth.RoleCandidate)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doGet(r, token).Code)

	claims, err := signer.ValidatedToken(token)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, claims.ID, claims.ExpiresAt.Time))

	rec := doGet(r, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has been revoked", errorOf(t, rec))
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiterMiddleware(2))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_keyedByActor(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, strings.HasPrefix(keyFunc(c), "ip: "))

	id := uuid.New()
	c.Set(utilities.ActorKey, model.Actor{ID: id})
	assert.Equal(t, "user: "+id.String(), keyFunc(c))
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.POST("/upload", SizeLimit(16), func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	small := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("tiny"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, small)
	assert.Equal(t, http.StatusOK, rec.Code)

	big := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("x", 16+int(multipartOverhead)+1)))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSafeHeader(t *testing.T) {
	r := gin.New()
	r.Use(SafeHeader())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

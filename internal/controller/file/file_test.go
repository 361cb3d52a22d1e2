package file

import (
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"TalentPipe-backend/internal/model"
	"TalentPipe-backend/internal/testutil"
	"TalentPipe-backend/internal/utilities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGetFile_malformedKey(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	fc := NewFileController(nil, nil, l)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(utilities.ActorKey, model.Actor{ID: uuid.New(), CompanyID: uuid.New()})
	})
	r.GET("/file/:bucket/*key", fc.GetFile)

	for _, path := range []string{
		"/file/resumes/cv.pdf",
		"/file/resumes/not-a-job/cv.pdf",
		"/file/resumes/" + uuid.NewString() + "/../x.pdf",
	} {
		rec, resp := testutil.MakeJSONRequest(nil, "", r, path, http.MethodGet)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "File not found", resp["error"], path)
	}
}

// Package blob stores resume files and hands back the URL they are served from.
package blob

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// URLPrefix is where the file controller serves stored objects
const URLPrefix = "/api/v1/file"

// ErrNotFound is returned by Open when no object exists under bucket/key
var ErrNotFound = errors.New("object not found")

// Object is an opened blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Store keeps opaque blobs
type Store interface {
	Put(ctx context.Context, data []byte, bucket, key string) (string, error)
	Open(ctx context.Context, bucket, key string) (*Object, error)
	// Delete removes bucket/key; a missing object is not an error
	Delete(ctx context.Context, bucket, key string) error
}

// URL is the path a stored object is served from
func URL(bucket, key string) string {
	return URLPrefix + "/" + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ContentType guesses a MIME type from the key's extension, then the content
func ContentType(key string, data []byte) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain; charset=utf-8"
	}
	return http.DetectContentType(data)
}

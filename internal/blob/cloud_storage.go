package blob

import (
	"bytes"
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// CloudStorage keeps blobs in Google Cloud Storage
type CloudStorage struct {
	Client *storage.Client
}

// NewCloudStorage creates a client using application default credentials
// unless opts say otherwise
func NewCloudStorage(ctx context.Context, opts ...option.ClientOption) (*CloudStorage, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cloud storage client")
	}
	return &CloudStorage{Client: client}, nil
}

// Put implements Store
func (c *CloudStorage) Put(ctx context.Context, data []byte, bucket, key string) (string, error) {
	wc := c.Client.Bucket(bucket).Object(key).NewWriter(ctx)
	wc.ContentType = ContentType(key, data)
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		_ = wc.Close()
		return "", errors.Wrap(err, "failed to write data to object")
	}
	if err := wc.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close object writer")
	}
	return URL(bucket, key), nil
}

// Open implements Store
func (c *CloudStorage) Open(ctx context.Context, bucket, key string) (*Object, error) {
	r, err := c.Client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to open object")
	}
	return &Object{Body: r, Size: r.Attrs.Size, ContentType: r.Attrs.ContentType}, nil
}

// Delete implements Store
func (c *CloudStorage) Delete(ctx context.Context, bucket, key string) error {
	err := c.Client.Bucket(bucket).Object(key).Delete(ctx)
	if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return errors.Wrap(err, "failed to delete object")
}

// Close releases the client
func (c *CloudStorage) Close() error {
	return c.Client.Close()
}

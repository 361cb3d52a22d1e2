package blob

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"TalentPipe-backend/internal/model"
)

// Database keeps blobs as File rows
type Database struct {
	db *gorm.DB
}

// NewDatabase creates a Database store
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Put implements Store. Writing an existing bucket/key replaces its content.
func (d *Database) Put(ctx context.Context, data []byte, bucket, key string) (string, error) {
	file := model.File{
		Bucket:      bucket,
		Key:         key,
		Content:     data,
		Extension:   path.Ext(key),
		ContentType: ContentType(key, data),
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bucket"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "extension", "content_type"}),
	}).Create(&file).Error
	if err != nil {
		return "", errors.Wrap(err, "failed to store file")
	}
	return URL(bucket, key), nil
}

// Delete implements Store
func (d *Database) Delete(ctx context.Context, bucket, key string) error {
	err := d.db.WithContext(ctx).Where("bucket = ? AND key = ?", bucket, key).Delete(&model.File{}).Error
	return errors.Wrap(err, "failed to delete file")
}

// Open implements Store
func (d *Database) Open(ctx context.Context, bucket, key string) (*Object, error) {
	var file model.File
	err := d.db.WithContext(ctx).Where("bucket = ? AND key = ?", bucket, key).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load file")
	}
	return &Object{
		Body:        io.NopCloser(bytes.NewReader(file.Content)),
		Size:        int64(len(file.Content)),
		ContentType: file.ContentType,
	}, nil
}

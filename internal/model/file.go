package model

import "time"

// File is a binary blob kept in the database, used by the database-backed
// blob store for resumes when no bucket storage is configured.
type File struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Bucket      string    `gorm:"type:text;not null;uniqueIndex:idx_files_bucket_key" json:"bucket"`
	Key         string    `gorm:"type:text;not null;uniqueIndex:idx_files_bucket_key" json:"key"`
	Content     []byte    `json:"-"`
	Extension   string    `json:"extension"`
	ContentType string    `gorm:"type:text" json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

package models

import "time"

// UploadedFile records locally stored uploads for timed cleanup. PID stays 0
// until the upload sync step links the file to the post that references it;
// linked files are exempt from cleanup.
type UploadedFile struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	PID       int64     `gorm:"column:pid;index;default:0" json:"pid"`
	FilePath  string    `gorm:"size:1024;not null" json:"file_path"` // absolute or relative filesystem path
	URL       string    `gorm:"size:1024;not null" json:"url"`       // public URL like /static/uploads/...
	ExpireAt  time.Time `gorm:"index" json:"expire_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UploadedFile) TableName() string {
	return "uploaded_files"
}

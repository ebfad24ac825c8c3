package stores

import (
	"context"
	"regexp"

	"gorm.io/gorm"

	"github.com/gobbs/gobbs/models"
)

var uploadURLRe = regexp.MustCompile(`/static/uploads/[^\s"'()<>\]]+`)

// Uploads links pending upload records to the post whose content references
// them. Linked files are exempt from the timed cleanup.
type Uploads struct {
	db *gorm.DB
}

// NewUploads creates the attachment sync store.
func NewUploads(db *gorm.DB) *Uploads {
	return &Uploads{db: db}
}

// Sync scans the post content for upload URLs and claims the matching
// unlinked rows for the pid.
func (u *Uploads) Sync(ctx context.Context, pid int64) error {
	var content string
	err := u.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("pid = ?", pid).
		Limit(1).
		Pluck("content", &content).Error
	if err != nil {
		return err
	}

	urls := uploadURLRe.FindAllString(content, -1)
	if len(urls) == 0 {
		return nil
	}

	return u.db.WithContext(ctx).
		Model(&models.UploadedFile{}).
		Where("url IN ? AND pid = ?", urls, 0).
		UpdateColumn("pid", pid).Error
}

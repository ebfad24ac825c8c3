package utils

import (
	"os"
	"time"

	"github.com/gobbs/gobbs/config"
	"github.com/gobbs/gobbs/models"
)

// StartUploadCleaner launches a background goroutine that periodically
// deletes expired uploads that never got linked to a post. Files claimed by
// the upload sync step (pid != 0) are kept. Best-effort; failures are logged.
func StartUploadCleaner(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		for {
			// sleep first to avoid racing startup
			time.Sleep(interval)
			if !config.Get().UploadsSelfDestructEnabled {
				continue
			}
			db := config.DB()
			var items []models.UploadedFile
			err := db.Where("expire_at <= ? AND pid = ?", time.Now(), 0).Limit(100).Find(&items).Error
			if err != nil {
				Sugar.Warnf("upload cleaner query failed: %v", err)
				continue
			}
			for _, it := range items {
				if it.FilePath != "" {
					_ = os.Remove(it.FilePath)
				}
				// drop the row regardless of file deletion outcome
				if err := db.Delete(&models.UploadedFile{}, it.ID).Error; err != nil {
					Sugar.Warnf("upload cleaner delete row failed: %v", err)
				}
			}
		}
	}()
}

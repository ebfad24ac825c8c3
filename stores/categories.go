package stores

import (
	"context"

	"gorm.io/gorm"

	"github.com/gobbs/gobbs/models"
)

// Categories keeps per-category rollups current on fan-out.
type Categories struct {
	db *gorm.DB
}

// NewCategories creates the category store.
func NewCategories(db *gorm.DB) *Categories {
	return &Categories{db: db}
}

// OnNewPost bumps the category post count. Posts in pinned threads do not
// move the category's recent-activity pointers.
func (c *Categories) OnNewPost(ctx context.Context, cid int64, pinned bool, post *models.Post) error {
	updates := map[string]interface{}{
		"post_count": gorm.Expr("post_count + ?", 1),
	}
	if !pinned {
		updates["last_post_id"] = post.PID
		updates["last_post_at"] = post.Timestamp
	}
	return c.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("cid = ?", cid).
		UpdateColumns(updates).Error
}

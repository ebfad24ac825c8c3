package stores

import (
	"context"

	"gorm.io/gorm"

	"github.com/gobbs/gobbs/models"
	"github.com/gobbs/gobbs/posts"
)

// Threads supplies thread context to the pipeline and keeps the thread-side
// rollups (post count, last-post pointers) current on fan-out.
type Threads struct {
	db *gorm.DB
}

// NewThreads creates the thread store.
func NewThreads(db *gorm.DB) *Threads {
	return &Threads{db: db}
}

// GetMeta reads the denormalized fields fan-out needs. A missing thread is an
// error; posts always belong to an existing thread.
func (t *Threads) GetMeta(ctx context.Context, tid int64) (posts.ThreadMeta, error) {
	var row models.Thread
	err := t.db.WithContext(ctx).
		Select("cid", "pinned", "uid", "title").
		Where("tid = ?", tid).
		Take(&row).Error
	if err != nil {
		return posts.ThreadMeta{}, err
	}
	return posts.ThreadMeta{CID: row.CID, Pinned: row.Pinned, UID: row.UID, Title: row.Title}, nil
}

// OnNewPost advances the thread rollups for a freshly written post.
func (t *Threads) OnNewPost(ctx context.Context, post *models.Post) error {
	return t.db.WithContext(ctx).
		Model(&models.Thread{}).
		Where("tid = ?", post.TID).
		UpdateColumns(map[string]interface{}{
			"post_count":   gorm.Expr("post_count + ?", 1),
			"last_post_id": post.PID,
			"last_post_at": post.Timestamp,
		}).Error
}

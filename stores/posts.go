package stores

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/gobbs/gobbs/models"
	"github.com/gobbs/gobbs/posts"
)

// Posts owns the canonical post rows in MySQL.
type Posts struct {
	db *gorm.DB
}

// NewPosts creates the canonical post store.
func NewPosts(db *gorm.DB) *Posts {
	return &Posts{db: db}
}

// Insert writes the canonical record with its pre-allocated pid.
func (p *Posts) Insert(ctx context.Context, post *models.Post) error {
	return p.db.WithContext(ctx).Create(post).Error
}

// GetFields reads the existence and deleted state of a post. A missing row is
// not an error; it yields a zero PID.
func (p *Posts) GetFields(ctx context.Context, pid int64) (posts.PostFields, error) {
	var row models.Post
	err := p.db.WithContext(ctx).Select("pid", "deleted").Where("pid = ?", pid).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return posts.PostFields{}, nil
	}
	if err != nil {
		return posts.PostFields{}, err
	}
	return posts.PostFields{PID: row.PID, Deleted: row.Deleted}, nil
}

// IncrementReplies bumps the reply counter on the parent row atomically in
// SQL; the pipeline never read-modify-writes counters.
func (p *Posts) IncrementReplies(ctx context.Context, pid int64) error {
	return p.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("pid = ?", pid).
		UpdateColumn("replies", gorm.Expr("replies + ?", 1)).Error
}

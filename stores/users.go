package stores

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gobbs/gobbs/models"
)

// Users is the identity collaborator backed by the users table.
type Users struct {
	db *gorm.DB
}

// NewUsers creates the user store.
func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// GetField reads a single whitelisted column for a user. The guest identity
// (uid 0) has no row and always resolves to the empty string.
func (u *Users) GetField(ctx context.Context, uid int64, field string) (string, error) {
	if uid == 0 {
		return "", nil
	}
	switch field {
	case "email", "username":
	default:
		return "", fmt.Errorf("unsupported user field %q", field)
	}
	var value string
	err := u.db.WithContext(ctx).
		Model(&models.User{}).
		Where("uid = ?", uid).
		Limit(1).
		Pluck(field, &value).Error
	return value, err
}

// OnNewPost advances the author's posting stats. Anonymous and guest posts
// carry uid 0 and leave no per-user trace.
func (u *Users) OnNewPost(ctx context.Context, post *models.Post) error {
	if post.UID == 0 {
		return nil
	}
	return u.db.WithContext(ctx).
		Model(&models.User{}).
		Where("uid = ?", post.UID).
		UpdateColumns(map[string]interface{}{
			"post_count":   gorm.Expr("post_count + ?", 1),
			"last_post_at": post.Timestamp,
		}).Error
}

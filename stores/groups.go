package stores

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/gobbs/gobbs/models"
)

// Groups records posting activity for every group the author belongs to:
// the group row's last_post_at column plus a time-ordered per-group post
// index in Redis.
type Groups struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewGroups creates the group-activity store.
func NewGroups(db *gorm.DB, rdb *redis.Client) *Groups {
	return &Groups{db: db, rdb: rdb}
}

func groupPostsKey(gid int64) string {
	return fmt.Sprintf("group:%d:posts", gid)
}

// OnNewPost fans the post into the author's groups. Guests belong to no
// groups, so uid 0 is a no-op.
func (g *Groups) OnNewPost(ctx context.Context, post *models.Post) error {
	if post.UID == 0 {
		return nil
	}

	var groupIDs []int64
	err := g.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("uid = ?", post.UID).
		Pluck("group_id", &groupIDs).Error
	if err != nil {
		return err
	}
	if len(groupIDs) == 0 {
		return nil
	}

	if err := g.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id IN ?", groupIDs).
		UpdateColumn("last_post_at", post.Timestamp).Error; err != nil {
		return err
	}

	pipe := g.rdb.Pipeline()
	for _, gid := range groupIDs {
		pipe.ZAdd(ctx, groupPostsKey(gid), redis.Z{Score: float64(post.Timestamp), Member: post.PID})
	}
	_, err = pipe.Exec(ctx)
	return err
}

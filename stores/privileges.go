package stores

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/gobbs/gobbs/config"
	"github.com/gobbs/gobbs/models"
	"github.com/gobbs/gobbs/posts"
)

// Privileges answers capability checks. Only administrators (configured by
// username) may view soft-deleted posts; everything else is denied.
type Privileges struct {
	db *gorm.DB
}

// NewPrivileges creates the permission checker.
func NewPrivileges(db *gorm.DB) *Privileges {
	return &Privileges{db: db}
}

// Can reports whether the actor holds the capability for the given post.
func (p *Privileges) Can(ctx context.Context, capability string, pid, uid int64) (bool, error) {
	if capability != posts.CapabilityViewDeleted {
		return false, nil
	}
	if uid == 0 {
		return false, nil
	}
	var username string
	err := p.db.WithContext(ctx).
		Model(&models.User{}).
		Where("uid = ?", uid).
		Limit(1).
		Pluck("username", &username).Error
	if err != nil {
		return false, err
	}
	if username == "" {
		return false, nil
	}
	for _, admin := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(admin), username) {
			return true, nil
		}
	}
	return false, nil
}

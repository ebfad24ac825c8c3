package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a forum user. Passwords are stored as bcrypt hashes only.
// UID 0 is reserved for the guest identity and never has a row.
type User struct {
	UID          int64     `gorm:"column:uid;primaryKey" json:"uid"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"size:255" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	PostCount    int64     `gorm:"default:0" json:"postcount"`
	LastPostAt   int64     `gorm:"column:last_post_at;default:0" json:"lastPostAt"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

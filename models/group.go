package models

// Group is a user group whose activity feed is updated when a member posts.
type Group struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"size:64;not null;uniqueIndex" json:"name"`
	LastPostAt int64  `gorm:"column:last_post_at;default:0" json:"lastPostAt"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupMember links users to groups.
type GroupMember struct {
	ID      int64 `gorm:"primaryKey" json:"id"`
	GroupID int64 `gorm:"column:group_id;index;not null" json:"groupId"`
	UID     int64 `gorm:"column:uid;index;not null" json:"uid"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

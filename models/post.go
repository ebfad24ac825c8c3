package models

// Post is the canonical record produced by the creation pipeline. Timestamps
// are epoch milliseconds, matching the scores used by the global time index.
type Post struct {
	PID       int64  `gorm:"column:pid;primaryKey" json:"pid"`
	UID       int64  `gorm:"column:uid;index" json:"uid"`
	TID       int64  `gorm:"column:tid;index;not null" json:"tid"`
	CID       int64  `gorm:"column:cid;index" json:"cid"`
	Content   string `gorm:"type:text;not null" json:"content"`
	Timestamp int64  `gorm:"index;not null" json:"timestamp"`
	ToPID     int64  `gorm:"column:to_pid;index;default:0" json:"toPid,omitempty"`
	IP        string `gorm:"size:45" json:"-"`
	Handle    string `gorm:"size:64" json:"handle,omitempty"`
	Replies   int64  `gorm:"default:0" json:"replies"`
	Deleted   bool   `gorm:"default:false" json:"deleted"`
}

// TableName keeps the table name stable; the pipeline allocates pids itself.
func (Post) TableName() string {
	return "posts"
}

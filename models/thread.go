package models

// Thread is the conversation container a post belongs to. The creation
// pipeline reads it for category, pinning and author context and only ever
// touches the denormalized rollup columns through its fan-out handler.
type Thread struct {
	TID        int64  `gorm:"column:tid;primaryKey" json:"tid"`
	CID        int64  `gorm:"column:cid;index;not null" json:"cid"`
	UID        int64  `gorm:"column:uid;index" json:"uid"`
	Title      string `gorm:"size:255;not null" json:"title"`
	Pinned     bool   `gorm:"default:false" json:"pinned"`
	PostCount  int64  `gorm:"default:0" json:"postcount"`
	LastPostID int64  `gorm:"column:last_post_id;default:0" json:"lastPostId"`
	LastPostAt int64  `gorm:"column:last_post_at;default:0" json:"lastPostAt"`
	Deleted    bool   `gorm:"default:false" json:"deleted"`
}

func (Thread) TableName() string {
	return "threads"
}

package models

// Category carries the per-category rollups maintained by post fan-out.
type Category struct {
	CID        int64  `gorm:"column:cid;primaryKey" json:"cid"`
	Name       string `gorm:"size:64;not null" json:"name"`
	PostCount  int64  `gorm:"default:0" json:"postcount"`
	LastPostID int64  `gorm:"column:last_post_id;default:0" json:"lastPostId"`
	LastPostAt int64  `gorm:"column:last_post_at;default:0" json:"lastPostAt"`
}

func (Category) TableName() string {
	return "categories"
}

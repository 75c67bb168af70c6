package models

// Advertisement is a gating task a user has to watch before a request settles.
type Advertisement struct {
	// Key is the derived storage key, see AdKey.
	Key string `json:"-" gorm:"column:record_key;primaryKey;size:64"`
	// ID is the admin-chosen identifier.
	ID string `json:"id" gorm:"column:ad_id;uniqueIndex;not null"`
	// URL points at the creative and always uses https.
	URL string `json:"url" gorm:"column:url;not null"`
	// Content is handed to the viewer when a request is initiated.
	Content string `json:"content" gorm:"column:content;not null"`
	// RewardAmount is recorded but currently influences no payout.
	RewardAmount uint64 `json:"reward_amount" gorm:"column:reward_amount;not null"`
	// DisplayDuration is the minimum viewing time in seconds.
	DisplayDuration int64 `json:"display_duration" gorm:"column:display_duration;not null"`
	// IsActive controls whether new requests may select the ad.
	IsActive bool `json:"is_active" gorm:"column:is_active;index"`
	// ViewCount is incremented by every settled request that references the ad.
	ViewCount uint64 `json:"view_count" gorm:"column:view_count;not null"`
	// CreatedAt is the unix creation time.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
}

// TableName specifies the table name for GORM
func (Advertisement) TableName() string {
	return "advertisements"
}

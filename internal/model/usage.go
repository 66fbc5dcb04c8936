package model

import (
	"time"

	"gorm.io/datatypes"
)

// UsageQuota 用户每日使用量，(user_id, day) 唯一
type UsageQuota struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	UserID    int64          `gorm:"not null;uniqueIndex:idx_usage_user_day" json:"user_id"`
	Day       datatypes.Date `gorm:"not null;uniqueIndex:idx_usage_user_day" json:"day"`
	UsedCount int            `gorm:"not null;default:0" json:"used_count"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (UsageQuota) TableName() string {
	return "usage_quotas"
}

package model

import (
	"time"
)

type GuestIdentity struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	Token         string     `gorm:"size:64;uniqueIndex;not null" json:"token"`
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expires_at"`
	DailyLimit    int        `gorm:"not null;default:1" json:"daily_limit"`
	UsedToday     int        `gorm:"not null;default:0" json:"used_today"`
	LastResetDate *time.Time `json:"last_reset_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (GuestIdentity) TableName() string {
	return "guest_identities"
}

package model

import (
	"time"
)

const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionExpired  = "expired"
)

type Subscription struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	UserID    int64      `gorm:"not null;index" json:"user_id"`
	PlanID    int64      `gorm:"not null;index" json:"plan_id"`
	Status    string     `gorm:"size:20;not null;default:active;index" json:"status"` // active, canceled, expired
	StartedAt time.Time  `gorm:"not null;index" json:"started_at"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"` // nil 表示永不过期
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive
}

// ExpiredAt 判断在 now 时刻是否已过期
func (s *Subscription) ExpiredAt(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

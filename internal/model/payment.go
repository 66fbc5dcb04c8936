package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PaymentStatusPaid = "paid"
)

// Payment 支付记录，只追加不修改
type Payment struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	UserID    int64          `gorm:"not null;index" json:"user_id"`
	PlanID    int64          `gorm:"not null;index" json:"plan_id"`
	Amount    float64        `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency  string         `gorm:"size:3;not null" json:"currency"`
	Provider  string         `gorm:"size:20;not null" json:"provider"`
	Status    string         `gorm:"size:20;not null" json:"status"`
	Details   datatypes.JSON `json:"details,omitempty"` // 持卡人、卡号后四位
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (Payment) TableName() string {
	return "payments"
}

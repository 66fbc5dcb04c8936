package model

import (
	"time"
)

type Plan struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	DailyLimit int       `gorm:"not null;default:0" json:"daily_limit"`
	Price      float64   `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Currency   string    `gorm:"size:3;not null;default:EUR" json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Plan) TableName() string {
	return "plans"
}

// IsFree 价格为 0 的套餐没有到期时间
func (p *Plan) IsFree() bool {
	return p.Price <= 0
}

package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(payment *model.Payment) error {
	return r.db.Create(payment).Error
}

// ListByUser 最近的支付记录
func (r *PaymentRepository) ListByUser(userID int64, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// ListAll 全部支付记录，用于导出
func (r *PaymentRepository) ListAll() ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.Order("created_at DESC").Order("id DESC").Find(&payments).Error
	return payments, err
}

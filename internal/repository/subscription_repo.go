package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/internal/model"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) WithTx(tx *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: tx}
}

func (r *SubscriptionRepository) Create(sub *model.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *SubscriptionRepository) GetByID(id int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByUser 按开始时间倒序，同一时间按 ID 倒序
func (r *SubscriptionRepository) ListByUser(userID int64) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.Where("user_id = ?", userID).
		Order("started_at DESC").
		Order("id DESC").
		Find(&subs).Error
	return subs, err
}

func (r *SubscriptionRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&model.Subscription{}).Where("id = ?", id).Update("status", status).Error
}

// CancelActive 取消用户全部生效中的订阅
func (r *SubscriptionRepository) CancelActive(userID int64) (int64, error) {
	result := r.db.Model(&model.Subscription{}).
		Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
		Update("status", model.SubscriptionCanceled)
	return result.RowsAffected, result.Error
}

func (r *SubscriptionRepository) DeleteByUser(userID int64) error {
	return r.db.Where("user_id = ?", userID).Delete(&model.Subscription{}).Error
}

// Transaction 在同一事务中执行 fn
func (r *SubscriptionRepository) Transaction(fn func(tx *SubscriptionRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/internal/model"
)

type GuestRepository struct {
	db *gorm.DB
}

func NewGuestRepository(db *gorm.DB) *GuestRepository {
	return &GuestRepository{db: db}
}

func (r *GuestRepository) Create(guest *model.GuestIdentity) error {
	return r.db.Create(guest).Error
}

func (r *GuestRepository) GetByID(id int64) (*model.GuestIdentity, error) {
	var guest model.GuestIdentity
	err := r.db.Where("id = ?", id).First(&guest).Error
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

func (r *GuestRepository) GetByToken(token string) (*model.GuestIdentity, error) {
	var guest model.GuestIdentity
	err := r.db.Where("token = ?", token).First(&guest).Error
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

// ResetDaily 跨天清零，同一天重复调用不生效
func (r *GuestRepository) ResetDaily(id int64, today time.Time) (bool, error) {
	result := r.db.Model(&model.GuestIdentity{}).
		Where("id = ? AND (last_reset_date IS NULL OR last_reset_date < ?)", id, today).
		Updates(map[string]interface{}{
			"used_today":      0,
			"last_reset_date": today,
		})
	return result.RowsAffected > 0, result.Error
}

// IncrementIfBelow 仅当 used_today < daily_limit 时加一
func (r *GuestRepository) IncrementIfBelow(id int64) (bool, error) {
	result := r.db.Model(&model.GuestIdentity{}).
		Where("id = ? AND used_today < daily_limit", id).
		Update("used_today", gorm.Expr("used_today + 1"))
	return result.RowsAffected > 0, result.Error
}

func (r *GuestRepository) List(page, pageSize int) ([]*model.GuestIdentity, int64, error) {
	var guests []*model.GuestIdentity
	var total int64

	query := r.db.Model(&model.GuestIdentity{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&guests).Error
	return guests, total, err
}

func (r *GuestRepository) Delete(id int64) error {
	return r.db.Delete(&model.GuestIdentity{}, id).Error
}

// ListExpiredBefore 过期时间早于 before 的访客
func (r *GuestRepository) ListExpiredBefore(before time.Time) ([]*model.GuestIdentity, error) {
	var guests []*model.GuestIdentity
	err := r.db.Where("expires_at < ?", before).Find(&guests).Error
	return guests, err
}

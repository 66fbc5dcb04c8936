package repository

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/audiosep_server/internal/model"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// GetUsed 某天已用次数，没有记录时为 0
func (r *UsageRepository) GetUsed(userID int64, day time.Time) (int, error) {
	var usage model.UsageQuota
	err := r.db.Where("user_id = ? AND day = ?", userID, datatypes.Date(day)).First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return usage.UsedCount, nil
}

// ensureRow 保证 (user_id, day) 行存在
func (r *UsageRepository) ensureRow(userID int64, day time.Time) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.UsageQuota{
		UserID:    userID,
		Day:       datatypes.Date(day),
		UsedCount: 0,
	}).Error
}

// Increment 无条件加一，返回新值
func (r *UsageRepository) Increment(userID int64, day time.Time) (int, error) {
	if err := r.ensureRow(userID, day); err != nil {
		return 0, err
	}

	err := r.db.Model(&model.UsageQuota{}).
		Where("user_id = ? AND day = ?", userID, datatypes.Date(day)).
		Update("used_count", gorm.Expr("used_count + 1")).Error
	if err != nil {
		return 0, err
	}
	return r.GetUsed(userID, day)
}

// IncrementIfBelow 仅当 used_count < limit 时加一
func (r *UsageRepository) IncrementIfBelow(userID int64, day time.Time, limit int) (int, bool, error) {
	if err := r.ensureRow(userID, day); err != nil {
		return 0, false, err
	}

	result := r.db.Model(&model.UsageQuota{}).
		Where("user_id = ? AND day = ? AND used_count < ?", userID, datatypes.Date(day), limit).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return 0, false, result.Error
	}

	used, err := r.GetUsed(userID, day)
	if err != nil {
		return 0, false, err
	}
	return used, result.RowsAffected > 0, nil
}

func (r *UsageRepository) DeleteByUser(userID int64) error {
	return r.db.Where("user_id = ?", userID).Delete(&model.UsageQuota{}).Error
}

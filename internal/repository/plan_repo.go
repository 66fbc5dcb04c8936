package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/internal/model"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) WithTx(tx *gorm.DB) *PlanRepository {
	return &PlanRepository{db: tx}
}

func (r *PlanRepository) Create(plan *model.Plan) error {
	return r.db.Create(plan).Error
}

func (r *PlanRepository) GetByID(id int64) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) GetByName(name string) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.Where("name = ?", name).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// List 按价格升序
func (r *PlanRepository) List() ([]*model.Plan, error) {
	var plans []*model.Plan
	err := r.db.Order("price ASC").Order("id ASC").Find(&plans).Error
	return plans, err
}

func (r *PlanRepository) Update(plan *model.Plan) error {
	return r.db.Save(plan).Error
}

func (r *PlanRepository) Delete(id int64) error {
	return r.db.Delete(&model.Plan{}, id).Error
}

func (r *PlanRepository) ExistsByName(name string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.Plan{}).Where("name = ? AND id <> ?", name, excludeID).Count(&count).Error
	return count > 0, err
}

// CountSubscriptions 引用该套餐的订阅数量
func (r *PlanRepository) CountSubscriptions(planID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.Subscription{}).Where("plan_id = ?", planID).Count(&count).Error
	return count, err
}

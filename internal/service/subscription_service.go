package service

import (
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/repository"
)

var ErrNoActivePlan = errors.New("没有生效的套餐")

// SubscriptionService 解析用户当前订阅
type SubscriptionService struct {
	subRepo  *repository.SubscriptionRepository
	planRepo *repository.PlanRepository
	plans    *PlanService
	now      func() time.Time
}

func NewSubscriptionService(subRepo *repository.SubscriptionRepository, planRepo *repository.PlanRepository, plans *PlanService) *SubscriptionService {
	return &SubscriptionService{
		subRepo:  subRepo,
		planRepo: planRepo,
		plans:    plans,
		now:      time.Now,
	}
}

// ResolveCurrent 返回当前生效的订阅及其套餐
//
// 已到期的订阅在这里被标记为 expired；没有生效订阅时自动开通默认套餐。
// 套餐已被删除时返回 nil 套餐，由调用方拒绝。
func (s *SubscriptionService) ResolveCurrent(userID int64) (*model.Subscription, *model.Plan, error) {
	now := s.now().UTC()

	subs, err := s.subRepo.ListByUser(userID)
	if err != nil {
		return nil, nil, err
	}

	var current *model.Subscription
	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		if sub.ExpiredAt(now) {
			// 写入失败时本次仍按生效处理，下次解析会重试
			if err := s.subRepo.UpdateStatus(sub.ID, model.SubscriptionExpired); err != nil {
				slog.Warn("failed to expire subscription", "subscription_id", sub.ID, "error", err)
			} else {
				sub.Status = model.SubscriptionExpired
				continue
			}
		}
		current = sub
		break
	}

	if current == nil {
		plan, err := s.plans.Default()
		if err != nil {
			return nil, nil, err
		}

		current = &model.Subscription{
			UserID:    userID,
			PlanID:    plan.ID,
			Status:    model.SubscriptionActive,
			StartedAt: now,
		}
		if err := s.subRepo.Create(current); err != nil {
			return nil, nil, err
		}
		return current, plan, nil
	}

	plan, err := s.planRepo.GetByID(current.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return current, nil, nil
		}
		return nil, nil, err
	}

	return current, plan, nil
}

// ActivateDefault 取消所有生效订阅并开通默认套餐（不过期）
func (s *SubscriptionService) ActivateDefault(userID int64) (*model.Subscription, *model.Plan, error) {
	plan, err := s.plans.EnsureDefault()
	if err != nil {
		return nil, nil, err
	}

	sub := &model.Subscription{
		UserID:    userID,
		PlanID:    plan.ID,
		Status:    model.SubscriptionActive,
		StartedAt: s.now().UTC(),
	}

	err = s.subRepo.Transaction(func(tx *repository.SubscriptionRepository) error {
		if _, err := tx.CancelActive(userID); err != nil {
			return err
		}
		return tx.Create(sub)
	})
	if err != nil {
		return nil, nil, err
	}

	return sub, plan, nil
}

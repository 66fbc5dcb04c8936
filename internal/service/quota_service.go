package service

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/repository"
)

var ErrQuotaExceeded = errors.New("今日配额已用完")

// QuotaService 用户每日用量账本，按 UTC 日期计数
type QuotaService struct {
	usageRepo *repository.UsageRepository
	userRepo  *repository.UserRepository
	subs      *SubscriptionService
	now       func() time.Time
}

func NewQuotaService(usageRepo *repository.UsageRepository, userRepo *repository.UserRepository, subs *SubscriptionService) *QuotaService {
	return &QuotaService{
		usageRepo: usageRepo,
		userRepo:  userRepo,
		subs:      subs,
		now:       time.Now,
	}
}

// Today 当前 UTC 日期
func (s *QuotaService) Today() time.Time {
	return dayOf(s.now())
}

// GetUsedToday 某天已用次数，没有记录时为 0
func (s *QuotaService) GetUsedToday(userID int64, day time.Time) (int, error) {
	return s.usageRepo.GetUsed(userID, dayOf(day))
}

// RecordUse 无条件记一次使用，返回新的次数
func (s *QuotaService) RecordUse(userID int64, day time.Time) (int, error) {
	return s.usageRepo.Increment(userID, dayOf(day))
}

// TryRecordUse 未达到 limit 时记一次使用，否则返回 ErrQuotaExceeded
func (s *QuotaService) TryRecordUse(userID int64, day time.Time, limit int) (int, error) {
	used, ok, err := s.usageRepo.IncrementIfBelow(userID, dayOf(day), limit)
	if err != nil {
		return 0, err
	}
	if !ok {
		return used, ErrQuotaExceeded
	}
	return used, nil
}

// GetQuotaInfo 获取用户今日配额信息
func (s *QuotaService) GetQuotaInfo(userID int64) (*dto.QuotaInfo, error) {
	if _, err := s.userRepo.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	_, plan, err := s.subs.ResolveCurrent(userID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNoActivePlan
	}

	today := s.Today()
	used, err := s.GetUsedToday(userID, today)
	if err != nil {
		return nil, err
	}

	remain := plan.DailyLimit - used
	if remain < 0 {
		remain = 0
	}

	return &dto.QuotaInfo{
		Plan:        plan.Name,
		DailyLimit:  plan.DailyLimit,
		DailyUsed:   used,
		DailyRemain: remain,
		Day:         today.Format("2006-01-02"),
	}, nil
}

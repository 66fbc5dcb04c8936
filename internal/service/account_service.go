package service

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/repository"
)

type AccountService struct {
	userRepo    *repository.UserRepository
	paymentRepo *repository.PaymentRepository
	subs        *SubscriptionService
	quota       *QuotaService
}

func NewAccountService(
	userRepo *repository.UserRepository,
	paymentRepo *repository.PaymentRepository,
	subs *SubscriptionService,
	quota *QuotaService,
) *AccountService {
	return &AccountService{
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		subs:        subs,
		quota:       quota,
	}
}

// Summary 账户概览：用户、当前套餐、今日用量、最近支付
func (s *AccountService) Summary(userID int64) (*dto.AccountSummary, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	sub, plan, err := s.subs.ResolveCurrent(userID)
	if err != nil {
		return nil, err
	}

	today := s.quota.Today()
	used, err := s.quota.GetUsedToday(userID, today)
	if err != nil {
		return nil, err
	}

	limit := 0
	if plan != nil {
		limit = plan.DailyLimit
	}

	payments, err := s.paymentRepo.ListByUser(userID, recentPaymentsLimit)
	if err != nil {
		return nil, err
	}
	paymentInfos := make([]*dto.PaymentInfo, 0, len(payments))
	for _, p := range payments {
		paymentInfos = append(paymentInfos, toPaymentInfo(p))
	}

	return &dto.AccountSummary{
		User:         toUserInfo(user),
		Plan:         toPlanInfo(plan),
		Subscription: toSubscriptionInfo(sub),
		Usage: &dto.UsageInfo{
			Day:   today.Format(time.DateOnly),
			Used:  used,
			Limit: limit,
		},
		Payments: paymentInfos,
	}, nil
}

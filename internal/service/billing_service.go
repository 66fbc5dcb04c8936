package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/pkg/email"
	"github.com/qs3c/audiosep_server/internal/pkg/metrics"
	"github.com/qs3c/audiosep_server/internal/repository"
)

const recentPaymentsLimit = 10

// BillingService 模拟支付和套餐切换
type BillingService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	planRepo    *repository.PlanRepository
	subRepo     *repository.SubscriptionRepository
	paymentRepo *repository.PaymentRepository
	subs        *SubscriptionService
	emailSvc    *email.Service
	cfg         *config.Config
	now         func() time.Time
}

func NewBillingService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	planRepo *repository.PlanRepository,
	subRepo *repository.SubscriptionRepository,
	paymentRepo *repository.PaymentRepository,
	subs *SubscriptionService,
	emailSvc *email.Service,
	cfg *config.Config,
) *BillingService {
	return &BillingService{
		db:          db,
		userRepo:    userRepo,
		planRepo:    planRepo,
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		subs:        subs,
		emailSvc:    emailSvc,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Checkout 模拟支付并切换到目标套餐
//
// 支付记录、取消旧订阅、创建新订阅在同一事务中完成。
func (s *BillingService) Checkout(userID int64, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	plan, err := s.planRepo.GetByID(req.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	details, err := paymentDetails(req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	payment := &model.Payment{
		UserID:    user.ID,
		PlanID:    plan.ID,
		Amount:    plan.Price,
		Currency:  plan.Currency,
		Provider:  s.provider(),
		Status:    model.PaymentStatusPaid,
		Details:   details,
		CreatedAt: now,
	}

	sub := &model.Subscription{
		UserID:    user.ID,
		PlanID:    plan.ID,
		Status:    model.SubscriptionActive,
		StartedAt: now,
	}
	if !plan.IsFree() {
		expiresAt := now.AddDate(0, 0, s.periodDays())
		sub.ExpiresAt = &expiresAt
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.WithTx(tx).Create(payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		subRepo := s.subRepo.WithTx(tx)
		if _, err := subRepo.CancelActive(user.ID); err != nil {
			return fmt.Errorf("failed to cancel subscriptions: %w", err)
		}
		if err := subRepo.Create(sub); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CheckoutsTotal.WithLabelValues(plan.Name).Inc()
	slog.Info("checkout completed",
		"user_id", user.ID,
		"plan", plan.Name,
		"amount", plan.Price,
		"currency", plan.Currency,
	)

	s.sendReceipt(user, plan, payment, sub, cardLast4(req.CardNumber))

	return &dto.CheckoutResponse{
		Payment:      toPaymentInfo(payment),
		Subscription: toSubscriptionInfo(sub),
		Plan:         toPlanInfo(plan),
	}, nil
}

// Downgrade 回到默认套餐
func (s *BillingService) Downgrade(userID int64) (*dto.CheckoutResponse, error) {
	if _, err := s.userRepo.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	sub, plan, err := s.subs.ActivateDefault(userID)
	if err != nil {
		return nil, err
	}

	slog.Info("subscription downgraded", "user_id", userID, "plan", plan.Name)

	return &dto.CheckoutResponse{
		Subscription: toSubscriptionInfo(sub),
		Plan:         toPlanInfo(plan),
	}, nil
}

// ListPayments 用户最近的支付记录
func (s *BillingService) ListPayments(userID int64, limit int) ([]*dto.PaymentInfo, error) {
	if limit <= 0 {
		limit = recentPaymentsLimit
	}

	payments, err := s.paymentRepo.ListByUser(userID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.PaymentInfo, 0, len(payments))
	for _, p := range payments {
		items = append(items, toPaymentInfo(p))
	}
	return items, nil
}

func (s *BillingService) sendReceipt(user *model.User, plan *model.Plan, payment *model.Payment, sub *model.Subscription, last4 string) {
	if !s.emailSvc.Enabled() || user.Email == nil {
		return
	}

	receipt := &email.Receipt{
		PlanName:  plan.Name,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		PaidAt:    payment.CreatedAt,
		ExpiresAt: sub.ExpiresAt,
		CardLast4: last4,
	}
	if err := s.emailSvc.SendReceipt(*user.Email, receipt); err != nil {
		slog.Warn("failed to send receipt", "user_id", user.ID, "error", err)
	}
}

func (s *BillingService) provider() string {
	if s.cfg.Billing.Provider == "" {
		return "simulated"
	}
	return s.cfg.Billing.Provider
}

func (s *BillingService) periodDays() int {
	if s.cfg.Billing.PeriodDays <= 0 {
		return 30
	}
	return s.cfg.Billing.PeriodDays
}

// paymentDetails 只保存持卡人和卡号后四位
func paymentDetails(req *dto.CheckoutRequest) (datatypes.JSON, error) {
	details := map[string]string{}
	if name := strings.TrimSpace(req.FullName); name != "" {
		details["card_holder"] = name
	}
	if last4 := cardLast4(req.CardNumber); last4 != "" {
		details["card_last4"] = last4
	}

	data, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func cardLast4(number string) string {
	digits := make([]rune, 0, len(number))
	for _, r := range number {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}

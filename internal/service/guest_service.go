package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/pkg/metrics"
	"github.com/qs3c/audiosep_server/internal/repository"
)

var (
	ErrGuestTokenInvalid = errors.New("访客令牌无效")
	ErrGuestTokenExpired = errors.New("访客会话已过期")
	ErrGuestNotFound     = errors.New("访客不存在")
)

// GuestService 访客身份，令牌有效期内每天有独立的上传次数
type GuestService struct {
	guestRepo *repository.GuestRepository
	jobRepo   *repository.JobRepository
	cfg       *config.Config
	now       func() time.Time
}

func NewGuestService(guestRepo *repository.GuestRepository, jobRepo *repository.JobRepository, cfg *config.Config) *GuestService {
	return &GuestService{
		guestRepo: guestRepo,
		jobRepo:   jobRepo,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create 创建访客会话
func (s *GuestService) Create() (*model.GuestIdentity, error) {
	token, err := generateGuestToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := dayOf(now)

	ttl := s.cfg.Guest.TTLHours
	if ttl <= 0 {
		ttl = 24
	}
	limit := s.cfg.Guest.DailyLimit
	if limit <= 0 {
		limit = 1
	}

	guest := &model.GuestIdentity{
		Token:         token,
		ExpiresAt:     now.Add(time.Duration(ttl) * time.Hour),
		DailyLimit:    limit,
		UsedToday:     0,
		LastResetDate: &today,
	}
	if err := s.guestRepo.Create(guest); err != nil {
		return nil, err
	}

	metrics.GuestSessionsTotal.Inc()
	return guest, nil
}

// Check 校验令牌和有效期，跨天时清零用量，并检查今日是否还有次数
func (s *GuestService) Check(token string) (*model.GuestIdentity, error) {
	guest, err := s.Lookup(token)
	if err != nil {
		return nil, err
	}

	if guest.UsedToday >= guest.DailyLimit {
		return guest, ErrQuotaExceeded
	}
	return guest, nil
}

// Lookup 校验令牌和有效期，并完成跨天清零，不检查次数
func (s *GuestService) Lookup(token string) (*model.GuestIdentity, error) {
	if token == "" {
		return nil, ErrGuestTokenInvalid
	}

	guest, err := s.guestRepo.GetByToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGuestTokenInvalid
		}
		return nil, err
	}

	now := s.now().UTC()
	if guest.ExpiresAt.Before(now) {
		return nil, ErrGuestTokenExpired
	}

	today := dayOf(now)
	if guest.LastResetDate == nil || guest.LastResetDate.Before(today) {
		reset, err := s.guestRepo.ResetDaily(guest.ID, today)
		switch {
		case err != nil:
			// 清零失败不影响本次请求，下次再试
			slog.Warn("failed to reset guest daily usage", "guest_id", guest.ID, "error", err)
		case reset:
			guest.UsedToday = 0
			guest.LastResetDate = &today
		default:
			// 并发请求已经清零
			if fresh, err := s.guestRepo.GetByID(guest.ID); err == nil {
				guest = fresh
			}
		}
	}

	return guest, nil
}

// Consume 原子地占用一次上传
func (s *GuestService) Consume(guest *model.GuestIdentity) error {
	ok, err := s.guestRepo.IncrementIfBelow(guest.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrQuotaExceeded
	}

	guest.UsedToday++
	return nil
}

// AdmitGuestUpload 校验并占用一次访客上传
func (s *GuestService) AdmitGuestUpload(token string) (*model.GuestIdentity, error) {
	guest, err := s.Check(token)
	if err != nil {
		return nil, err
	}
	if err := s.Consume(guest); err != nil {
		return nil, err
	}
	return guest, nil
}

// Session 访客会话信息
func (s *GuestService) Session(guest *model.GuestIdentity) *dto.GuestSessionResponse {
	return &dto.GuestSessionResponse{
		GuestToken: guest.Token,
		ExpiresAt:  formatTime(guest.ExpiresAt),
		DailyLimit: guest.DailyLimit,
		UsedToday:  guest.UsedToday,
	}
}

// List 管理后台列出访客
func (s *GuestService) List(page, pageSize int) ([]*dto.GuestInfo, int64, error) {
	guests, total, err := s.guestRepo.List(page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.GuestInfo, 0, len(guests))
	for _, g := range guests {
		items = append(items, toGuestInfo(g))
	}
	return items, total, nil
}

// Delete 删除访客，保留其任务记录
func (s *GuestService) Delete(id int64) error {
	if _, err := s.guestRepo.GetByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGuestNotFound
		}
		return err
	}

	if err := s.jobRepo.DetachGuest(id); err != nil {
		return err
	}
	return s.guestRepo.Delete(id)
}

// PurgeExpired 删除过期超过 grace 的访客，dryRun 时只返回待删除的访客
func (s *GuestService) PurgeExpired(grace time.Duration, dryRun bool) ([]*model.GuestIdentity, error) {
	guests, err := s.guestRepo.ListExpiredBefore(s.now().UTC().Add(-grace))
	if err != nil {
		return nil, err
	}
	if dryRun {
		return guests, nil
	}

	for _, g := range guests {
		if err := s.Delete(g.ID); err != nil && !errors.Is(err, ErrGuestNotFound) {
			return nil, fmt.Errorf("failed to delete guest %d: %w", g.ID, err)
		}
	}
	return guests, nil
}

func generateGuestToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate guest token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

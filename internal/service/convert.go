package service

import (
	"time"

	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/model/dto"
)

// dayOf 取 UTC 零点
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func toPlanInfo(p *model.Plan) *dto.PlanInfo {
	if p == nil {
		return nil
	}
	return &dto.PlanInfo{
		ID:         p.ID,
		Name:       p.Name,
		DailyLimit: p.DailyLimit,
		Price:      p.Price,
		Currency:   p.Currency,
	}
}

func toUserInfo(u *model.User) *dto.UserInfo {
	info := &dto.UserInfo{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   formatTime(u.CreatedAt),
	}
	if u.Email != nil {
		info.Email = *u.Email
	}
	return info
}

func toSubscriptionInfo(s *model.Subscription) *dto.SubscriptionInfo {
	if s == nil {
		return nil
	}
	return &dto.SubscriptionInfo{
		ID:        s.ID,
		PlanID:    s.PlanID,
		Status:    s.Status,
		StartedAt: formatTime(s.StartedAt),
		ExpiresAt: formatTimePtr(s.ExpiresAt),
	}
}

func toPaymentInfo(p *model.Payment) *dto.PaymentInfo {
	return &dto.PaymentInfo{
		ID:        p.ID,
		PlanID:    p.PlanID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Provider:  p.Provider,
		Status:    p.Status,
		CreatedAt: formatTime(p.CreatedAt),
	}
}

func toJobInfo(j *model.AudioJob) *dto.JobInfo {
	return &dto.JobInfo{
		ID:            j.ID,
		OriginalName:  j.OriginalName,
		InputPath:     j.InputPath,
		VocalsPath:    j.VocalsPath,
		BacksoundPath: j.BacksoundPath,
		Status:        j.Status,
		ErrorMessage:  j.ErrorMessage,
		CreatedAt:     formatTime(j.CreatedAt),
		CompletedAt:   formatTimePtr(j.CompletedAt),
	}
}

func toGuestInfo(g *model.GuestIdentity) *dto.GuestInfo {
	info := &dto.GuestInfo{
		ID:         g.ID,
		Token:      g.Token,
		ExpiresAt:  formatTime(g.ExpiresAt),
		DailyLimit: g.DailyLimit,
		UsedToday:  g.UsedToday,
		CreatedAt:  formatTime(g.CreatedAt),
	}
	if g.LastResetDate != nil {
		info.LastResetDate = g.LastResetDate.UTC().Format("2006-01-02")
	}
	return info
}

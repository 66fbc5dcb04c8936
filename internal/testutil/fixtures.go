package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/internal/model"
)

// TestPassword 测试用户的默认明文密码
const TestPassword = "password123"

var (
	seq          int64
	passwordHash string
)

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

func hashedTestPassword(t *testing.T) string {
	t.Helper()

	if passwordHash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}
		passwordHash = string(hash)
	}
	return passwordHash
}

// Today 当天 UTC 零点
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := nextSeq()
	email := fmt.Sprintf("test_%d_%d@example.com", time.Now().UnixNano(), n)
	hash := hashedTestPassword(t)
	user := &model.User{
		Email:        &email,
		PasswordHash: &hash,
		DisplayName:  fmt.Sprintf("testuser_%d", n),
		Role:         model.RoleUser,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithRole 设置角色
func WithRole(role string) func(*model.User) {
	return func(u *model.User) {
		u.Role = role
	}
}

// TestPlan 创建测试套餐
func TestPlan(t *testing.T, db *gorm.DB, name string, dailyLimit int, price float64) *model.Plan {
	t.Helper()

	plan := &model.Plan{
		Name:       name,
		DailyLimit: dailyLimit,
		Price:      price,
		Currency:   "EUR",
	}

	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("Failed to create test plan: %v", err)
	}

	return plan
}

// SeedPlans 写入 Standard/Silver/Gold 三个套餐
func SeedPlans(t *testing.T, db *gorm.DB) (standard, silver, gold *model.Plan) {
	t.Helper()

	standard = TestPlan(t, db, "Standard", 1, 0)
	silver = TestPlan(t, db, "Silver", 3, 9.99)
	gold = TestPlan(t, db, "Gold", 5, 19.99)
	return
}

// TestSubscription 创建测试订阅
func TestSubscription(t *testing.T, db *gorm.DB, userID, planID int64, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	sub := &model.Subscription{
		UserID:    userID,
		PlanID:    planID,
		Status:    model.SubscriptionActive,
		StartedAt: time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// WithExpiresAt 设置到期时间
func WithExpiresAt(expiresAt time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.ExpiresAt = &expiresAt
	}
}

// WithStartedAt 设置开始时间
func WithStartedAt(startedAt time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.StartedAt = startedAt
	}
}

// WithSubscriptionStatus 设置订阅状态
func WithSubscriptionStatus(status string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Status = status
	}
}

// TestUsage 写入某天的使用量
func TestUsage(t *testing.T, db *gorm.DB, userID int64, day time.Time, used int) *model.UsageQuota {
	t.Helper()

	usage := &model.UsageQuota{
		UserID:    userID,
		Day:       datatypes.Date(day),
		UsedCount: used,
	}

	if err := db.Create(usage).Error; err != nil {
		t.Fatalf("Failed to create test usage: %v", err)
	}

	return usage
}

// TestGuest 创建测试访客
func TestGuest(t *testing.T, db *gorm.DB, opts ...func(*model.GuestIdentity)) *model.GuestIdentity {
	t.Helper()

	today := Today()
	guest := &model.GuestIdentity{
		Token:         fmt.Sprintf("%064d", nextSeq()),
		ExpiresAt:     time.Now().UTC().Add(24 * time.Hour),
		DailyLimit:    1,
		UsedToday:     0,
		LastResetDate: &today,
	}

	for _, opt := range opts {
		opt(guest)
	}

	if err := db.Create(guest).Error; err != nil {
		t.Fatalf("Failed to create test guest: %v", err)
	}

	return guest
}

// WithGuestUsed 设置访客今日已用次数
func WithGuestUsed(used int) func(*model.GuestIdentity) {
	return func(g *model.GuestIdentity) {
		g.UsedToday = used
	}
}

// WithGuestExpiresAt 设置访客过期时间
func WithGuestExpiresAt(expiresAt time.Time) func(*model.GuestIdentity) {
	return func(g *model.GuestIdentity) {
		g.ExpiresAt = expiresAt
	}
}

// WithGuestLastReset 设置访客上次重置日期
func WithGuestLastReset(day time.Time) func(*model.GuestIdentity) {
	return func(g *model.GuestIdentity) {
		g.LastResetDate = &day
	}
}

// TestJob 创建测试任务
func TestJob(t *testing.T, db *gorm.DB, userID int64, status string) *model.AudioJob {
	t.Helper()

	n := nextSeq()
	job := &model.AudioJob{
		UserID:        &userID,
		OriginalName:  fmt.Sprintf("song_%d.mp3", n),
		InputPath:     fmt.Sprintf("%d_song.mp3", n),
		VocalsPath:    fmt.Sprintf("%d_song_vocals.mp3", n),
		BacksoundPath: fmt.Sprintf("%d_song_backsound.mp3", n),
		Status:        status,
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

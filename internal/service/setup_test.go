package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/pkg/email"
	"github.com/qs3c/audiosep_server/internal/pkg/oauth"
	"github.com/qs3c/audiosep_server/internal/pkg/pubsub"
	"github.com/qs3c/audiosep_server/internal/pkg/storage"
	"github.com/qs3c/audiosep_server/internal/repository"
	"github.com/qs3c/audiosep_server/internal/testutil"
)

type testEnv struct {
	db       *gorm.DB
	cfg      *config.Config
	store    storage.Store
	notifier *recordingNotifier

	userRepo    *repository.UserRepository
	subRepo     *repository.SubscriptionRepository
	paymentRepo *repository.PaymentRepository
	jobRepo     *repository.JobRepository
	guestRepo   *repository.GuestRepository

	plans   *PlanService
	subs    *SubscriptionService
	quota   *QuotaService
	guests  *GuestService
	billing *BillingService
	auth    *AuthService
	account *AccountService
	jobs    *JobService
	admin   *AdminService

	standard *model.Plan
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		JWT:   config.JWTConfig{Secret: "test-secret", ExpireHours: 24},
		Plans: config.DefaultPlans(),
		Billing: config.BillingConfig{
			DefaultPlan: "Standard",
			PeriodDays:  30,
			Provider:    "simulated",
			Currency:    "EUR",
		},
		Guest:  config.GuestConfig{TTLHours: 24, DailyLimit: 1},
		Upload: config.UploadConfig{Storage: "local", Dir: t.TempDir()},
	}
}

// setupServices wires every service against an in-memory database with the default catalog seeded.
func setupServices(t *testing.T) *testEnv {
	t.Helper()

	cfg := testConfig(t)
	store, err := storage.NewLocalStore(cfg.Upload.Dir)
	require.NoError(t, err)

	env := newTestEnv(t, cfg, store)

	standard, err := env.plans.Seed()
	require.NoError(t, err)
	env.standard = standard

	return env
}

func newTestEnv(t *testing.T, cfg *config.Config, store storage.Store) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	env := &testEnv{
		db:          db,
		cfg:         cfg,
		store:       store,
		notifier:    &recordingNotifier{},
		userRepo:    repository.NewUserRepository(db),
		subRepo:     repository.NewSubscriptionRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
		jobRepo:     repository.NewJobRepository(db),
		guestRepo:   repository.NewGuestRepository(db),
	}

	planRepo := repository.NewPlanRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	env.plans = NewPlanService(planRepo, cfg)
	env.subs = NewSubscriptionService(env.subRepo, planRepo, env.plans)
	env.quota = NewQuotaService(usageRepo, env.userRepo, env.subs)
	env.guests = NewGuestService(env.guestRepo, env.jobRepo, cfg)
	env.billing = NewBillingService(db, env.userRepo, planRepo, env.subRepo, env.paymentRepo, env.subs, email.NewService(&cfg.Email), cfg)
	env.auth = NewAuthService(env.userRepo, env.subs, env.guests, oauth.NewGithubOAuth(cfg.OAuth.Github), cfg)
	env.account = NewAccountService(env.userRepo, env.paymentRepo, env.subs, env.quota)
	env.jobs = NewJobService(env.jobRepo, env.userRepo, env.subs, env.quota, env.guests, store, env.notifier, cfg)
	env.admin = NewAdminService(db, env.userRepo, env.subRepo, usageRepo, env.paymentRepo, env.plans, env.subs, cfg)

	return env
}

// failNextUpdate makes the next UPDATE against table fail without touching the row.
func failNextUpdate(t *testing.T, db *gorm.DB, table string) {
	t.Helper()

	armed := true
	err := db.Callback().Update().Before("gorm:update").Register("test:fail_next_"+table, func(tx *gorm.DB) {
		if armed && tx.Statement.Table == table {
			armed = false
			tx.AddError(errors.New("simulated write failure"))
		}
	})
	require.NoError(t, err)
}

// setNow pins the clock of every time-aware service.
func (e *testEnv) setNow(now time.Time) {
	clock := func() time.Time { return now }
	e.subs.now = clock
	e.quota.now = clock
	e.guests.now = clock
	e.billing.now = clock
	e.jobs.now = clock
}

func (e *testEnv) countSubscriptions(t *testing.T, userID int64) int64 {
	t.Helper()

	var count int64
	require.NoError(t, e.db.Model(&model.Subscription{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

// newFileHeader builds a multipart file header the way gin hands it to handlers.
func newFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []*pubsub.JobMessage
}

func (n *recordingNotifier) Publish(ctx context.Context, msg *pubsub.JobMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) Messages() []*pubsub.JobMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*pubsub.JobMessage(nil), n.messages...)
}

// hookStore runs onSave before delegating, letting tests interleave work between admission and consumption.
type hookStore struct {
	storage.Store
	onSave func()
}

func (s *hookStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if s.onSave != nil {
		s.onSave()
	}
	return s.Store.Save(ctx, name, r)
}

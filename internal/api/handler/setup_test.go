package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/api/middleware"
	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/pkg/email"
	"github.com/qs3c/audiosep_server/internal/pkg/jwt"
	"github.com/qs3c/audiosep_server/internal/pkg/oauth"
	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/pkg/storage"
	"github.com/qs3c/audiosep_server/internal/repository"
	"github.com/qs3c/audiosep_server/internal/service"
	"github.com/qs3c/audiosep_server/internal/testutil"
)

const testJWTSecret = "test-secret-key"

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	db     *gorm.DB
	cfg    *config.Config
	states *oauth.StateStore

	plans   *service.PlanService
	auth    *service.AuthService
	guests  *service.GuestService
	jobs    *service.JobService
	billing *service.BillingService
	admin   *service.AdminService
	account *service.AccountService
	quota   *service.QuotaService
}

func newTestConfig(t *testing.T) *config.Config {
	return &config.Config{
		JWT:     config.JWTConfig{Secret: testJWTSecret, ExpireHours: 24},
		Plans:   config.DefaultPlans(),
		Billing: config.BillingConfig{DefaultPlan: "Standard", PeriodDays: 30, Provider: "simulated", Currency: "EUR"},
		Guest:   config.GuestConfig{TTLHours: 24, DailyLimit: 1},
		Upload:  config.UploadConfig{Storage: "local", Dir: t.TempDir(), MaxSize: 1 << 20},
	}
}

// setupApp wires the services against an in-memory database and a miniredis-backed state store.
func setupApp(t *testing.T, cfg *config.Config) *testApp {
	t.Helper()

	if cfg == nil {
		cfg = newTestConfig(t)
	}

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store, err := storage.NewLocalStore(cfg.Upload.Dir)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	jobRepo := repository.NewJobRepository(db)
	guestRepo := repository.NewGuestRepository(db)

	app := &testApp{db: db, cfg: cfg, states: oauth.NewStateStore(rdb)}
	app.plans = service.NewPlanService(planRepo, cfg)
	_, err = app.plans.Seed()
	require.NoError(t, err)

	subs := service.NewSubscriptionService(subRepo, planRepo, app.plans)
	app.quota = service.NewQuotaService(usageRepo, userRepo, subs)
	app.guests = service.NewGuestService(guestRepo, jobRepo, cfg)
	app.auth = service.NewAuthService(userRepo, subs, app.guests, oauth.NewGithubOAuth(cfg.OAuth.Github), cfg)
	app.billing = service.NewBillingService(db, userRepo, planRepo, subRepo, paymentRepo, subs, email.NewService(&cfg.Email), cfg)
	app.account = service.NewAccountService(userRepo, paymentRepo, subs, app.quota)
	app.jobs = service.NewJobService(jobRepo, userRepo, subs, app.quota, app.guests, store, nil, cfg)
	app.admin = service.NewAdminService(db, userRepo, subRepo, usageRepo, paymentRepo, app.plans, subs, cfg)

	return app
}

// engine registers the handlers behind the same middleware chain the server uses.
func (a *testApp) engine() *gin.Engine {
	authH := NewAuthHandler(a.auth, a.states)
	accountH := NewAccountHandler(a.account, a.quota, a.auth, a.billing)
	billingH := NewBillingHandler(a.billing)
	planH := NewPlanHandler(a.plans)
	jobH := NewJobHandler(a.jobs)
	adminH := NewAdminHandler(a.admin, a.guests, a.jobs, a.plans)

	r := gin.New()
	r.GET("/plans", planH.List)
	r.GET("/plans/:id", planH.Get)
	r.POST("/auth/register", authH.Register)
	r.POST("/auth/login", authH.Login)
	r.POST("/auth/guest", authH.Guest)
	r.GET("/auth/github", authH.GithubAuth)
	r.GET("/auth/github/callback", authH.GithubCallback)

	open := r.Group("/jobs", middleware.OptionalAuth(testJWTSecret), middleware.GuestToken())
	open.POST("/upload", jobH.Upload)
	open.GET("/:id", jobH.Get)
	r.GET("/guest/jobs", middleware.GuestToken(), jobH.GuestList)

	authed := r.Group("", middleware.Auth(testJWTSecret))
	authed.GET("/jobs", jobH.List)
	authed.GET("/account/summary", accountH.Summary)
	authed.GET("/account/quota", accountH.Quota)
	authed.POST("/account/password", accountH.ChangePassword)
	authed.POST("/account/downgrade", accountH.Downgrade)
	authed.POST("/billing/checkout", billingH.Checkout)
	authed.GET("/billing/payments", billingH.Payments)

	admin := r.Group("/admin", middleware.Auth(testJWTSecret), middleware.RequireAdmin(a.auth))
	admin.GET("/users", adminH.ListUsers)
	admin.POST("/users", adminH.CreateUser)
	admin.PUT("/users/:id", adminH.UpdateUser)
	admin.DELETE("/users/:id", adminH.DeleteUser)
	admin.GET("/guests", adminH.ListGuests)
	admin.DELETE("/guests/:id", adminH.DeleteGuest)
	admin.GET("/jobs", adminH.ListJobs)
	admin.DELETE("/jobs/:id", adminH.DeleteJob)
	admin.GET("/plans", adminH.ListPlans)
	admin.POST("/plans", adminH.CreatePlan)
	admin.PUT("/plans/:id", adminH.UpdatePlan)
	admin.DELETE("/plans/:id", adminH.DeletePlan)
	admin.POST("/sql", adminH.Query)
	admin.GET("/payments/export", adminH.ExportPayments)

	return r
}

func (a *testApp) newUser(t *testing.T, opts ...func(*model.User)) (*model.User, string) {
	t.Helper()

	user := testutil.TestUser(t, a.db, opts...)
	token, err := jwt.GenerateToken(user.ID, testJWTSecret, 24)
	require.NoError(t, err)
	return user, token
}

type requestOption func(*http.Request)

func withToken(token string) requestOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withGuestToken(token string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(middleware.GuestTokenHeader, token)
	}
}

func performRequest(r http.Handler, method, path string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// performUpload posts content as the multipart field "file"; an empty filename sends no file part.
func performUpload(t *testing.T, r http.Handler, filename string, content []byte, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, writer.WriteField("note", "no file"))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/jobs/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// decodeData re-decodes the envelope's data field into out.
func decodeData(t *testing.T, resp response.Response, out interface{}) {
	t.Helper()

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

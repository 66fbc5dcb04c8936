package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/testutil"
)

func TestSubscriptionService_ResolveCurrent_CreatesDefault(t *testing.T) {
	env := setupServices(t)
	user := testutil.TestUser(t, env.db)

	sub, plan, err := env.subs.ResolveCurrent(user.ID)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, env.standard.ID, plan.ID)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.Nil(t, sub.ExpiresAt)
	assert.Equal(t, int64(1), env.countSubscriptions(t, user.ID))

	// Resolving again reuses the row
	again, _, err := env.subs.ResolveCurrent(user.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)
	assert.Equal(t, int64(1), env.countSubscriptions(t, user.ID))
}

func TestSubscriptionService_ResolveCurrent_ExpiresLazily(t *testing.T) {
	env := setupServices(t)
	user := testutil.TestUser(t, env.db)
	gold, err := env.plans.GetByName("Gold")
	require.NoError(t, err)

	now := time.Now().UTC()
	expired := testutil.TestSubscription(t, env.db, user.ID, gold.ID,
		testutil.WithStartedAt(now.AddDate(0, 0, -31)),
		testutil.WithExpiresAt(now.Add(-time.Hour)),
	)

	sub, plan, err := env.subs.ResolveCurrent(user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, expired.ID, sub.ID)
	assert.Equal(t, env.standard.ID, plan.ID)

	reloaded, err := env.subRepo.GetByID(expired.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionExpired, reloaded.Status)

	// Never returned as current again
	again, _, err := env.subs.ResolveCurrent(user.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)
}

func TestSubscriptionService_ResolveCurrent_ExpiryWriteFails(t *testing.T) {
	env := setupServices(t)
	user := testutil.TestUser(t, env.db)
	gold, err := env.plans.GetByName("Gold")
	require.NoError(t, err)

	now := time.Now().UTC()
	stale := testutil.TestSubscription(t, env.db, user.ID, gold.ID,
		testutil.WithStartedAt(now.AddDate(0, 0, -31)),
		testutil.WithExpiresAt(now.Add(-time.Hour)),
	)

	failNextUpdate(t, env.db, "subscriptions")

	// The stale row stays current for this call
	sub, plan, err := env.subs.ResolveCurrent(user.ID)
	require.NoError(t, err)
	assert.Equal(t, stale.ID, sub.ID)
	assert.Equal(t, gold.ID, plan.ID)
	assert.Equal(t, int64(1), env.countSubscriptions(t, user.ID))

	reloaded, err := env.subRepo.GetByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionActive, reloaded.Status)

	// The next call expires it and falls back to the default plan
	sub, plan, err = env.subs.ResolveCurrent(user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, sub.ID)
	assert.Equal(t, env.standard.ID, plan.ID)

	reloaded, err = env.subRepo.GetByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionExpired, reloaded.Status)
}

func TestSubscriptionService_ResolveCurrent_PicksMostRecentActive(t *testing.T) {
	env := setupServices(t)
	user := testutil.TestUser(t, env.db)
	silver, err := env.plans.GetByName("Silver")
	require.NoError(t, err)
	gold, err := env.plans.GetByName("Gold")
	require.NoError(t, err)

	now := time.Now().UTC()
	testutil.TestSubscription(t, env.db, user.ID, silver.ID, testutil.WithStartedAt(now.Add(-2*time.Hour)))
	recent := testutil.TestSubscription(t, env.db, user.ID, gold.ID,
		testutil.WithStartedAt(now.Add(-time.Hour)),
		testutil.WithExpiresAt(now.Add(24*time.Hour)),
	)
	testutil.TestSubscription(t, env.db, user.ID, env.standard.ID,
		testutil.WithStartedAt(now),
		testutil.WithSubscriptionStatus(model.SubscriptionCanceled),
	)

	sub, plan, err := env.subs.ResolveCurrent(user.ID)
	require.NoError(t, err)
	assert.Equal(t, recent.ID, sub.ID)
	assert.Equal(t, "Gold", plan.Name)
}

func TestSubscriptionService_ResolveCurrent_DanglingPlan(t *testing.T) {
	env := setupServices(t)
	user := testutil.TestUser(t, env.db)

	sub := testutil.TestSubscription(t, env.db, user.ID, 9999)

	current, plan, err := env.subs.ResolveCurrent(user.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, current.ID)
	assert.Nil(t, plan)
}

func TestSubscriptionService_ResolveCurrent_NoDefaultPlan(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	user := testutil.TestUser(t, env.db)

	_, _, err := env.subs.ResolveCurrent(user.ID)
	assert.ErrorIs(t, err, ErrNoDefaultPlan)
	assert.Equal(t, int64(0), env.countSubscriptions(t, user.ID))
}

func TestSubscriptionService_ActivateDefault(t *testing.T) {
	env := setupServices(t)
	user := testutil.TestUser(t, env.db)
	gold, err := env.plans.GetByName("Gold")
	require.NoError(t, err)

	paid := testutil.TestSubscription(t, env.db, user.ID, gold.ID,
		testutil.WithExpiresAt(time.Now().UTC().AddDate(0, 0, 30)),
	)

	sub, plan, err := env.subs.ActivateDefault(user.ID)
	require.NoError(t, err)
	assert.Equal(t, env.standard.ID, plan.ID)
	assert.Nil(t, sub.ExpiresAt)

	reloaded, err := env.subRepo.GetByID(paid.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionCanceled, reloaded.Status)

	current, _, err := env.subs.ResolveCurrent(user.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, current.ID)
}

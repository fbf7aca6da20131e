package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgdb "github.com/fitcheckhq/fitcheck-backend/pkg/db"
	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
)

func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	tenantSubscriptions := `
CREATE TABLE IF NOT EXISTS tenant_subscriptions (
  tenant_id TEXT PRIMARY KEY,
  plan_name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  usage_limit INTEGER NOT NULL,
  current_usage INTEGER NOT NULL DEFAULT 0,
  cycle_start_date DATETIME NOT NULL,
  cycle_end_date DATETIME,
  last_sync_time DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	webhookDeliveries := `
CREATE TABLE IF NOT EXISTS webhook_deliveries (
  id TEXT PRIMARY KEY,
  webhook_id TEXT NOT NULL UNIQUE,
  topic TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  received_at DATETIME NOT NULL
);`
	billingPlans := `
CREATE TABLE IF NOT EXISTS billing_plans (
  id TEXT PRIMARY KEY,
  tier TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  monthly_limit INTEGER NOT NULL,
  price_amount TEXT NOT NULL DEFAULT '0',
  currency_code TEXT NOT NULL DEFAULT 'USD',
  features TEXT,
  is_default INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`

	for _, stmt := range []string{tenantSubscriptions, webhookDeliveries, billingPlans} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedSubscription(t *testing.T, repo Repository, tenantID string, used, limit int) *models.TenantSubscription {
	t.Helper()
	now := time.Now().UTC()
	sub := &models.TenantSubscription{
		TenantID:       tenantID,
		PlanName:       "Free Plan",
		Status:         enums.SubscriptionStatusActive,
		UsageLimit:     limit,
		CurrentUsage:   used,
		CycleStartDate: now,
		LastSyncTime:   now,
	}
	require.NoError(t, repo.UpsertSubscription(context.Background(), sub))
	return sub
}

func TestUpsertSubscriptionRoundTrip(t *testing.T) {
	repo := NewRepository(setupBillingTestDB(t))
	ctx := context.Background()

	seedSubscription(t, repo, "shop-a", 1, 2)

	found, err := repo.FindSubscription(ctx, "shop-a")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Free Plan", found.PlanName)
	assert.Equal(t, 1, found.CurrentUsage)

	found.PlanName = "Professional Plan"
	found.UsageLimit = 500
	require.NoError(t, repo.UpsertSubscription(ctx, found))

	again, err := repo.FindSubscription(ctx, "shop-a")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "Professional Plan", again.PlanName)
	assert.Equal(t, 500, again.UsageLimit)
}

func TestFindSubscriptionMissingReturnsNil(t *testing.T) {
	repo := NewRepository(setupBillingTestDB(t))

	found, err := repo.FindSubscription(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestTouchLastSync(t *testing.T) {
	repo := NewRepository(setupBillingTestDB(t))
	ctx := context.Background()
	seedSubscription(t, repo, "shop-a", 0, 2)

	at := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.TouchLastSync(ctx, "shop-a", at))

	found, err := repo.FindSubscription(ctx, "shop-a")
	require.NoError(t, err)
	assert.True(t, found.LastSyncTime.Equal(at), "last_sync_time should move to %v, got %v", at, found.LastSyncTime)
	assert.Equal(t, 0, found.CurrentUsage, "touch must not alter usage")
}

func TestIncrementUsageStopsAtLimit(t *testing.T) {
	repo := NewRepository(setupBillingTestDB(t))
	ctx := context.Background()
	seedSubscription(t, repo, "shop-a", 0, 2)

	for i := 0; i < 2; i++ {
		ok, err := repo.IncrementUsage(ctx, "shop-a")
		require.NoError(t, err)
		assert.True(t, ok, "increment %d should succeed", i+1)
	}

	ok, err := repo.IncrementUsage(ctx, "shop-a")
	require.NoError(t, err)
	assert.False(t, ok, "increment beyond the limit must be refused")

	found, err := repo.FindSubscription(ctx, "shop-a")
	require.NoError(t, err)
	assert.Equal(t, 2, found.CurrentUsage)
}

func TestResetUsageCycle(t *testing.T) {
	repo := NewRepository(setupBillingTestDB(t))
	ctx := context.Background()
	seedSubscription(t, repo, "shop-a", 2, 2)

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.ResetUsageCycle(ctx, "shop-a", start))

	found, err := repo.FindSubscription(ctx, "shop-a")
	require.NoError(t, err)
	assert.Equal(t, 0, found.CurrentUsage)
	assert.True(t, found.CycleStartDate.Equal(start))
}

func TestListSubscriptionsForReconciliation(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := []models.TenantSubscription{
		{TenantID: "active-stale", PlanName: "Free Plan", Status: enums.SubscriptionStatusActive,
			UsageLimit: 2, CycleStartDate: now, LastSyncTime: now.Add(-30 * 24 * time.Hour)},
		{TenantID: "cancelled-recent", PlanName: "Free Plan", Status: enums.SubscriptionStatusCancelled,
			UsageLimit: 2, CycleStartDate: now, LastSyncTime: now.Add(-time.Hour)},
		{TenantID: "cancelled-stale", PlanName: "Free Plan", Status: enums.SubscriptionStatusCancelled,
			UsageLimit: 2, CycleStartDate: now, LastSyncTime: now.Add(-30 * 24 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, repo.UpsertSubscription(ctx, &rows[i]))
	}

	subs, err := repo.ListSubscriptionsForReconciliation(ctx, 10, 7*24*time.Hour)
	require.NoError(t, err)

	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.TenantID)
	}
	assert.Equal(t, []string{"active-stale", "cancelled-recent"}, ids,
		"active tenants always qualify, cancelled only within the lookback, oldest sync first")

	limited, err := repo.ListSubscriptionsForReconciliation(ctx, 1, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestWebhookDeliveryDedup(t *testing.T) {
	repo := NewRepository(setupBillingTestDB(t))
	ctx := context.Background()

	delivery := &models.WebhookDelivery{
		ID:         uuid.New(),
		WebhookID:  "wh-1",
		Topic:      "subscriptions/update",
		TenantID:   "shop-a",
		ReceivedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateWebhookDelivery(ctx, delivery))

	dup := &models.WebhookDelivery{
		ID:         uuid.New(),
		WebhookID:  "wh-1",
		Topic:      "subscriptions/update",
		TenantID:   "shop-a",
		ReceivedAt: time.Now().UTC(),
	}
	err := repo.CreateWebhookDelivery(ctx, dup)
	require.Error(t, err)
	assert.True(t, pkgdb.IsUniqueViolation(err), "duplicate webhook_id must surface as a unique violation")

	require.NoError(t, repo.DeleteWebhookDelivery(ctx, "wh-1"))
	require.NoError(t, repo.CreateWebhookDelivery(ctx, dup))
}

func TestDeleteWebhookDeliveriesBefore(t *testing.T) {
	repo := NewRepository(setupBillingTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	old := &models.WebhookDelivery{ID: uuid.New(), WebhookID: "wh-old", Topic: "subscriptions/update",
		TenantID: "shop-a", ReceivedAt: now.Add(-40 * 24 * time.Hour)}
	fresh := &models.WebhookDelivery{ID: uuid.New(), WebhookID: "wh-new", Topic: "subscriptions/update",
		TenantID: "shop-a", ReceivedAt: now}
	require.NoError(t, repo.CreateWebhookDelivery(ctx, old))
	require.NoError(t, repo.CreateWebhookDelivery(ctx, fresh))

	deleted, err := repo.DeleteWebhookDeliveriesBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := repo.DeleteWebhookDeliveriesBefore(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestBillingPlanLookups(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seed := `
INSERT INTO billing_plans (id, tier, name, monthly_limit, price_amount, currency_code, is_default)
VALUES
  ('plan_free', 'free', 'Free Plan', 2, '0', 'USD', 1),
  ('plan_professional', 'professional', 'Professional Plan', 500, '29', 'USD', 0),
  ('plan_enterprise', 'enterprise', 'Enterprise Plan', 10000, '199', 'USD', 0);`
	require.NoError(t, db.Exec(seed).Error)

	plans, err := repo.ListBillingPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, enums.PlanTierFree, plans[0].Tier, "plans sort by monthly limit ascending")
	assert.Equal(t, enums.PlanTierEnterprise, plans[2].Tier)

	pro, err := repo.FindBillingPlanByTier(ctx, enums.PlanTierProfessional)
	require.NoError(t, err)
	require.NotNil(t, pro)
	assert.Equal(t, 500, pro.MonthlyLimit)

	missing, err := repo.FindBillingPlanByTier(ctx, enums.PlanTier("platinum"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

package billing

import (
	"context"
	"time"

	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles subscription and webhook persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSubscription(ctx context.Context, tenantID string) (*models.TenantSubscription, error)
	UpsertSubscription(ctx context.Context, subscription *models.TenantSubscription) error
	UpdateSubscription(ctx context.Context, subscription *models.TenantSubscription) error
	TouchLastSync(ctx context.Context, tenantID string, at time.Time) error
	IncrementUsage(ctx context.Context, tenantID string) (bool, error)
	ResetUsageCycle(ctx context.Context, tenantID string, cycleStart time.Time) error
	ListSubscriptionsForReconciliation(ctx context.Context, limit int, lookback time.Duration) ([]models.TenantSubscription, error)
	ListBillingPlans(ctx context.Context) ([]models.BillingPlan, error)
	FindBillingPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error)
	CreateWebhookDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	DeleteWebhookDelivery(ctx context.Context, webhookID string) error
	DeleteWebhookDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSubscription(ctx context.Context, tenantID string) (*models.TenantSubscription, error) {
	if tenantID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var sub models.TenantSubscription
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) UpsertSubscription(ctx context.Context, subscription *models.TenantSubscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(subscription).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, subscription *models.TenantSubscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *repository) TouchLastSync(ctx context.Context, tenantID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.TenantSubscription{}).
		Where("tenant_id = ?", tenantID).
		Update("last_sync_time", at).Error
}

// IncrementUsage bumps current_usage atomically, refusing the write once the
// quota is reached. Returns false when the tenant is out of quota.
func (r *repository) IncrementUsage(ctx context.Context, tenantID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TenantSubscription{}).
		Where("tenant_id = ? AND current_usage < usage_limit", tenantID).
		Update("current_usage", gorm.Expr("current_usage + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ResetUsageCycle(ctx context.Context, tenantID string, cycleStart time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.TenantSubscription{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]any{
			"current_usage":    0,
			"cycle_start_date": cycleStart,
		}).Error
}

func (r *repository) ListSubscriptionsForReconciliation(ctx context.Context, limit int, lookback time.Duration) ([]models.TenantSubscription, error) {
	if limit <= 0 {
		limit = 250
	}
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-lookback)
	var subs []models.TenantSubscription
	query := r.db.WithContext(ctx).
		Model(&models.TenantSubscription{}).
		Where("status = ? OR last_sync_time >= ?", enums.SubscriptionStatusActive, cutoff).
		Order("last_sync_time ASC").
		Limit(limit)
	if err := query.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListBillingPlans(ctx context.Context) ([]models.BillingPlan, error) {
	var plans []models.BillingPlan
	if err := r.db.WithContext(ctx).
		Order("monthly_limit ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) FindBillingPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error) {
	var plan models.BillingPlan
	if err := r.db.WithContext(ctx).
		Where("tier = ?", tier).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) CreateWebhookDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *repository) DeleteWebhookDelivery(ctx context.Context, webhookID string) error {
	return r.db.WithContext(ctx).
		Where("webhook_id = ?", webhookID).
		Delete(&models.WebhookDelivery{}).Error
}

func (r *repository) DeleteWebhookDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("received_at < ?", cutoff).
		Delete(&models.WebhookDelivery{})
	return result.RowsAffected, result.Error
}

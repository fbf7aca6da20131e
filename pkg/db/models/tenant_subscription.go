package models

import (
	"time"

	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
)

// TenantSubscription persists the billing state for a single shop. The shop
// domain doubles as the tenant identifier, so there is exactly one row per
// tenant.
type TenantSubscription struct {
	TenantID       string                   `gorm:"column:tenant_id;primaryKey"`
	PlanName       string                   `gorm:"column:plan_name;not null"`
	Status         enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	UsageLimit     int                      `gorm:"column:usage_limit;not null"`
	CurrentUsage   int                      `gorm:"column:current_usage;not null;default:0"`
	CycleStartDate time.Time                `gorm:"column:cycle_start_date;not null"`
	CycleEndDate   *time.Time               `gorm:"column:cycle_end_date"`
	LastSyncTime   time.Time                `gorm:"column:last_sync_time;not null"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// RemainingQuota returns how many try-ons the tenant has left this cycle.
func (s *TenantSubscription) RemainingQuota() int {
	remaining := s.UsageLimit - s.CurrentUsage
	if remaining < 0 {
		return 0
	}
	return remaining
}

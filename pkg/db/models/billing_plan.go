package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
)

// BillingPlan captures the local metadata for a catalog plan. The in-memory
// catalog is the source of truth for limits; these rows carry the pricing and
// marketing copy the storefront renders.
type BillingPlan struct {
	ID           string          `gorm:"column:id;primaryKey"`
	Tier         enums.PlanTier  `gorm:"column:tier;type:plan_tier;not null;uniqueIndex"`
	Name         string          `gorm:"column:name;not null"`
	MonthlyLimit int             `gorm:"column:monthly_limit;not null"`
	PriceAmount  decimal.Decimal `gorm:"column:price_amount;type:numeric(12,2);not null"`
	CurrencyCode string          `gorm:"column:currency_code;not null;default:'USD'"`
	Features     pq.StringArray  `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	IsDefault    bool            `gorm:"column:is_default;not null;default:false"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

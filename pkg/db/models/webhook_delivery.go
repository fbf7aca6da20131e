package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookDelivery records a processed provider webhook for dedup purposes.
// The unique index on webhook_id is what makes admission idempotent under
// concurrent redelivery.
type WebhookDelivery struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	WebhookID  string    `gorm:"column:webhook_id;not null;uniqueIndex:idx_webhook_deliveries_webhook_id"`
	Topic      string    `gorm:"column:topic;not null"`
	TenantID   string    `gorm:"column:tenant_id;not null;index"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UnknownOrderID is recorded when a delivery carries no order id.
const UnknownOrderID = "unknown"

// WebhookLog is the append-only audit record of one webhook delivery.
// Payload is stored verbatim.
type WebhookLog struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID      string         `gorm:"column:order_id;not null" json:"order_id"`
	Status       int            `gorm:"column:status;not null;default:0" json:"status"`
	Payload      datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	Processed    bool           `gorm:"column:processed;not null;default:false" json:"processed"`
	ErrorMessage string         `gorm:"column:error_message;not null;default:''" json:"error_message,omitempty"`
	ReceivedAt   time.Time      `gorm:"column:received_at;not null" json:"received_at"`
	ProcessedAt  *time.Time     `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (WebhookLog) TableName() string { return "webhook_logs" }

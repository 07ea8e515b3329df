package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/schoolpay-backend/pkg/enums"
)

// StudentInfo is embedded on Order as student_name/student_id/student_email.
type StudentInfo struct {
	Name      string `gorm:"column:name;not null"`
	StudentID string `gorm:"column:id;not null"`
	Email     string `gorm:"column:email;not null"`
}

// Order is the static record of a payment request. It is joined to its
// OrderStatus by CustomOrderID, never by the storage key.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SchoolID         string            `gorm:"column:school_id;not null"`
	TrusteeID        *string           `gorm:"column:trustee_id"`
	Student          StudentInfo       `gorm:"embedded;embeddedPrefix:student_"`
	GatewayName      string            `gorm:"column:gateway_name;not null"`
	CustomOrderID    string            `gorm:"column:custom_order_id;not null;uniqueIndex:ux_orders_custom_order_id"`
	CollectRequestID *string           `gorm:"column:collect_request_id"`
	Amount           decimal.Decimal   `gorm:"column:amount;type:numeric(14,2);not null"`
	CallbackURL      string            `gorm:"column:callback_url;not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

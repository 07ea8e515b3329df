package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/angelmondragon/schoolpay-backend/pkg/enums"
)

// OrderStatus is the mutable transaction shadow of an Order, keyed by
// CollectID (= Order.CustomOrderID). At most one row exists per CollectID.
// Status is the normalized value; GatewayStatus is the status string exactly
// as the gateway last reported it.
type OrderStatus struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CollectID         string                  `gorm:"column:collect_id;not null;uniqueIndex:ux_order_statuses_collect_id"`
	CollectRequestID  *string                 `gorm:"column:collect_request_id"`
	OrderAmount       decimal.Decimal         `gorm:"column:order_amount;type:numeric(14,2);not null;default:0"`
	TransactionAmount decimal.Decimal         `gorm:"column:transaction_amount;type:numeric(14,2);not null;default:0"`
	PaymentMode       string                  `gorm:"column:payment_mode;not null;default:''"`
	PaymentDetails    datatypes.JSON          `gorm:"column:payment_details;type:jsonb"`
	BankReference     string                  `gorm:"column:bank_reference;not null;default:''"`
	PaymentMessage    string                  `gorm:"column:payment_message;not null;default:''"`
	ErrorMessage      string                  `gorm:"column:error_message;not null;default:''"`
	Status            enums.TransactionStatus `gorm:"column:status;not null;default:'pending'"`
	GatewayStatus     string                  `gorm:"column:gateway_status;not null;default:''"`
	PaymentTime       *time.Time              `gorm:"column:payment_time"`
	Gateway           string                  `gorm:"column:gateway;not null;default:'Edviron'"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderStatus) TableName() string { return "order_statuses" }

package enums

import (
	"fmt"
	"strings"
)

// OrderStatus is the coarse lifecycle stored on an Order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusSuccess    OrderStatus = "success"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusSuccess,
	OrderStatusFailed,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus, ignoring case.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// CoarseOrderStatus collapses a gateway-reported status onto the Order
// lifecycle: exactly "SUCCESS" and "FAILED" map through, everything else
// (lowercase spellings and USER_DROPPED included) is processing.
func CoarseOrderStatus(gatewayStatus string) OrderStatus {
	switch strings.TrimSpace(gatewayStatus) {
	case "SUCCESS":
		return OrderStatusSuccess
	case "FAILED":
		return OrderStatusFailed
	default:
		return OrderStatusProcessing
	}
}

package enums

import (
	"fmt"
	"strings"
)

// TransactionStatus is the normalized status stored on an OrderStatus row.
// Gateways report it in either case; it is lowercased on write.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusSuccess    TransactionStatus = "success"
	TransactionStatusFailed     TransactionStatus = "failed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusProcessing,
	TransactionStatusSuccess,
	TransactionStatusFailed,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ValidTransactionStatuses returns the accepted values, in lifecycle order.
func ValidTransactionStatuses() []TransactionStatus {
	out := make([]TransactionStatus, len(validTransactionStatuses))
	copy(out, validTransactionStatuses)
	return out
}

// ParseTransactionStatus normalizes a gateway status. Blank input is pending.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return TransactionStatusPending, nil
	}
	normalized := TransactionStatus(strings.ToLower(trimmed))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

// NormalizeTransactionStatus is the lenient form used on gateway input.
// Terminal gateway states outside the vocabulary (USER_DROPPED, CANCELLED)
// collapse to failed; anything else unrecognized is still processing.
func NormalizeTransactionStatus(value string) TransactionStatus {
	if parsed, err := ParseTransactionStatus(value); err == nil {
		return parsed
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "user_dropped", "dropped", "cancelled", "canceled", "failure", "expired":
		return TransactionStatusFailed
	case "completed", "paid", "captured":
		return TransactionStatusSuccess
	default:
		return TransactionStatusProcessing
	}
}

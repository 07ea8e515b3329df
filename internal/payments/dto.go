package payments

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/schoolpay-backend/pkg/types"
)

// StudentInput identifies the payer.
type StudentInput struct {
	Name  string `json:"name" validate:"required"`
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// CreatePaymentInput is the create-payment request. Amount accepts a JSON
// number or a numeric string.
type CreatePaymentInput struct {
	SchoolID    string            `json:"school_id" validate:"required"`
	TrusteeID   *string           `json:"trustee_id,omitempty"`
	Amount      types.FlexDecimal `json:"amount"`
	CallbackURL string            `json:"callback_url" validate:"required,http_url"`
	GatewayName string            `json:"gateway_name,omitempty"`
	Student     StudentInput      `json:"student_info"`
}

// CreatePaymentResult is returned once the gateway accepted the request and
// the order was stored.
type CreatePaymentResult struct {
	CollectRequestID string          `json:"collect_request_id"`
	PaymentURL       string          `json:"payment_url"`
	CustomOrderID    string          `json:"custom_order_id"`
	OrderID          uuid.UUID       `json:"order_id"`
	Sign             string          `json:"sign,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	StudentName      string          `json:"student_name"`
}

// StatusCheckResult is the gateway's view of a collect request, tied back to
// the local order when one is known.
type StatusCheckResult struct {
	CollectRequestID string          `json:"collect_request_id"`
	CustomOrderID    string          `json:"custom_order_id,omitempty"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Details          json.RawMessage `json:"details,omitempty"`
	JWT              string          `json:"jwt,omitempty"`
	Gateway          json.RawMessage `json:"gateway_response,omitempty"`
}

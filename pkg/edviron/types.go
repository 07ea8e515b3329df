package edviron

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/schoolpay-backend/pkg/types"
)

// CreateCollectRequestParams is the input for a new gateway collect request.
type CreateCollectRequestParams struct {
	SchoolID    string
	Amount      decimal.Decimal
	CallbackURL string
}

// CollectRequest is the gateway's answer to create-collect-request.
type CollectRequest struct {
	CollectRequestID string `json:"collect_request_id"`
	PaymentURL       string `json:"Collect_request_url"`
	Sign             string `json:"sign"`
}

type createCollectRequestBody struct {
	SchoolID    string `json:"school_id"`
	Amount      string `json:"amount"`
	CallbackURL string `json:"callback_url"`
	Sign        string `json:"sign"`
}

// StatusPayload is the gateway's collect-request status. Raw keeps the full
// body so callers can pass it through untouched.
type StatusPayload struct {
	Status  types.FlexString  `json:"status"`
	Amount  types.FlexDecimal `json:"amount"`
	Details json.RawMessage   `json:"details,omitempty"`
	JWT     string            `json:"jwt,omitempty"`
	Raw     json.RawMessage   `json:"-"`
}

type upstreamError struct {
	Message types.FlexString `json:"message"`
	Error   types.FlexString `json:"error"`
}

package edvironwebhook

import (
	"bytes"
	"encoding/json"

	"github.com/angelmondragon/schoolpay-backend/pkg/types"
)

// Payload is an Edviron transaction callback. Field names are matched
// case-insensitively, so Payment_message and payment_message both land in
// PaymentMessage.
type Payload struct {
	Status    types.FlexInt `json:"status"`
	OrderInfo *OrderInfo    `json:"order_info"`
}

type OrderInfo struct {
	OrderID           types.FlexString  `json:"order_id"`
	OrderAmount       types.FlexDecimal `json:"order_amount"`
	TransactionAmount types.FlexDecimal `json:"transaction_amount"`
	Gateway           types.FlexString  `json:"gateway"`
	BankReference     types.FlexString  `json:"bank_reference"`
	Status            types.FlexString  `json:"status"`
	PaymentMode       types.FlexString  `json:"payment_mode"`
	PaymentDetails    json.RawMessage   `json:"payment_details"`
	PaymentDetailsAlt json.RawMessage   `json:"payemnt_details"`
	PaymentMessage    types.FlexString  `json:"payment_message"`
	PaymentTime       types.FlexTime    `json:"payment_time"`
	ErrorMessage      types.FlexString  `json:"error_message"`
}

// Details returns whichever payment details field the gateway populated.
func (o *OrderInfo) Details() json.RawMessage {
	for _, raw := range []json.RawMessage{o.PaymentDetailsAlt, o.PaymentDetails} {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		return trimmed
	}
	return nil
}

// decodeBody parses the delivery. A body that is not a JSON object is kept
// verbatim for the audit log under {"raw": ...} and yields a nil payload.
func decodeBody(body []byte) (*Payload, []byte) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		var p Payload
		if err := json.Unmarshal(trimmed, &p); err == nil {
			return &p, trimmed
		}
		return nil, trimmed
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(body)})
	return nil, wrapped
}

package webhooks

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/schoolpay-backend/api/middleware"
	"github.com/angelmondragon/schoolpay-backend/api/responses"
	"github.com/angelmondragon/schoolpay-backend/api/validators"
	edvironwebhook "github.com/angelmondragon/schoolpay-backend/internal/webhooks/edviron"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
)

// EdvironReconciler applies one gateway delivery.
type EdvironReconciler interface {
	Handle(ctx context.Context, body []byte) edvironwebhook.Outcome
}

type ackData struct {
	LogID       string                           `json:"log_id,omitempty"`
	OrderStatus *edvironwebhook.ReconciledStatus `json:"order_status,omitempty"`
}

// EdvironWebhook acknowledges every delivery with 200. The body's success
// flag reports whether reconciliation went through.
func EdvironWebhook(rec EdvironReconciler, maxBodyBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if rec == nil {
			if logg != nil {
				logg.Warn(ctx, "webhook.edviron.unavailable")
			}
			responses.WriteAck(w, false, edvironwebhook.MessageInternalFailed, nil)
			return
		}

		if middleware.RateLimitedFromContext(ctx) && logg != nil {
			logg.Warn(ctx, "webhook.edviron.over_rate_limit")
		}

		body, err := validators.ReadBody(w, r, maxBodyBytes)
		if err != nil && logg != nil {
			logg.Warn(logg.WithFields(ctx, map[string]any{"reason": err.Error(), "bytes_read": len(body)}), "webhook.edviron.body_truncated")
		}

		out := rec.Handle(ctx, body)

		var data *ackData
		if out.Status != nil || out.LogID != uuid.Nil {
			data = &ackData{OrderStatus: out.Status}
			if out.LogID != uuid.Nil {
				data.LogID = out.LogID.String()
			}
		}
		responses.WriteAck(w, out.Success, out.Message, data)
	}
}

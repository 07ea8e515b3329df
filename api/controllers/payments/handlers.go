package payments

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/schoolpay-backend/api/responses"
	"github.com/angelmondragon/schoolpay-backend/api/validators"
	paymentsvc "github.com/angelmondragon/schoolpay-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
)

// Service describes the payment operations used by the HTTP controllers.
type Service interface {
	CreatePayment(ctx context.Context, input paymentsvc.CreatePaymentInput) (*paymentsvc.CreatePaymentResult, error)
	CheckStatus(ctx context.Context, schoolID, collectRequestID string) (*paymentsvc.StatusCheckResult, error)
}

// CreatePayment registers a collect request with the gateway and returns the
// hosted payment URL.
func CreatePayment(svc Service, maxBodyBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var input paymentsvc.CreatePaymentInput
		if err := validators.DecodeJSONBody(w, r, &input, maxBodyBytes); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.CreatePayment(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Payment request created successfully", result)
	}
}

// CheckPaymentStatus polls the gateway for a collect request.
func CheckPaymentStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		collectRequestID := validators.SanitizeString(chi.URLParam(r, "collectRequestId"), validators.MaxIdentifierLen)
		schoolID := validators.SanitizeString(r.URL.Query().Get("school_id"), validators.MaxIdentifierLen)

		result, err := svc.CheckStatus(ctx, schoolID, collectRequestID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", result)
	}
}

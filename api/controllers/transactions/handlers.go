package transactions

import (
	"context"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/schoolpay-backend/api/responses"
	"github.com/angelmondragon/schoolpay-backend/api/validators"
	txsvc "github.com/angelmondragon/schoolpay-backend/internal/transactions"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
	"github.com/angelmondragon/schoolpay-backend/pkg/pagination"
)

// Service describes the transaction reads used by the HTTP controllers.
type Service interface {
	GetStatus(ctx context.Context, customOrderID string) (*txsvc.StatusView, error)
	List(ctx context.Context, query txsvc.ListQuery) (*txsvc.ListResult, error)
	ListBySchool(ctx context.Context, schoolID string, page, limit int) (*txsvc.ListResult, error)
}

// List returns the merged order/status view with paging, sorting and a status filter.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		page, limit, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		asc, err := validators.ParseSortOrder(r, "order")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		q := r.URL.Query()
		result, err := svc.List(ctx, txsvc.ListQuery{
			Page:     page,
			Limit:    limit,
			Sort:     validators.SanitizeString(q.Get("sort"), 32),
			Asc:      asc,
			Status:   validators.SanitizeString(q.Get("status"), 32),
			SchoolID: validators.SanitizeString(q.Get("school_id"), validators.MaxIdentifierLen),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", result)
	}
}

func ListBySchool(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		page, limit, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		schoolID := validators.SanitizeString(chi.URLParam(r, "schoolId"), validators.MaxIdentifierLen)

		result, err := svc.ListBySchool(ctx, schoolID, page, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", result)
	}
}

// Status reports the merged state of one order. The order record answers
// when no status row exists yet.
func Status(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		customOrderID := validators.SanitizeString(chi.URLParam(r, "customOrderId"), validators.MaxIdentifierLen)
		view, err := svc.GetStatus(ctx, customOrderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", view)
	}
}

func pageParams(r *http.Request) (int, int, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, math.MaxInt32)
	if err != nil {
		return 0, 0, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

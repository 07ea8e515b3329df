package dashboard

import (
	"context"
	"net/http"

	"github.com/angelmondragon/schoolpay-backend/api/responses"
	"github.com/angelmondragon/schoolpay-backend/api/validators"
	txsvc "github.com/angelmondragon/schoolpay-backend/internal/transactions"
	"github.com/angelmondragon/schoolpay-backend/internal/webhooklogs"
	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
)

// Service describes the dashboard aggregates used by the HTTP controllers.
type Service interface {
	Stats(ctx context.Context, query txsvc.StatsQuery) (*txsvc.Stats, error)
	Recent(ctx context.Context, schoolID string, limit int) ([]txsvc.TransactionView, error)
	GatewayPerformance(ctx context.Context, query txsvc.StatsQuery) ([]txsvc.GatewayPerformance, error)
	TopSchools(ctx context.Context, query txsvc.TopSchoolsQuery) (*txsvc.TopSchools, error)
}

// WebhookLogReader lists stored gateway deliveries.
type WebhookLogReader interface {
	List(ctx context.Context, query webhooklogs.ListQuery) ([]models.WebhookLog, error)
}

func Stats(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		query, err := statsQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		stats, err := svc.Stats(ctx, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", stats)
	}
}

func RecentTransactions(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 10, 1, 50)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		schoolID := validators.SanitizeString(r.URL.Query().Get("school_id"), validators.MaxIdentifierLen)

		views, err := svc.Recent(ctx, schoolID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", map[string]any{"transactions": views})
	}
}

func GatewayPerformance(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		query, err := statsQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		gateways, err := svc.GatewayPerformance(ctx, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", map[string]any{"gateways": gateways})
	}
}

func TopSchools(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 50)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := svc.TopSchools(ctx, txsvc.TopSchoolsQuery{
			Limit:  limit,
			SortBy: validators.SanitizeString(r.URL.Query().Get("sort_by"), 32),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", out)
	}
}

// WebhookLogs lists recent gateway deliveries for manual reconciliation.
func WebhookLogs(reader WebhookLogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reader == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook log reader unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, webhooklogs.MaxListLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		q := r.URL.Query()
		logs, err := reader.List(ctx, webhooklogs.ListQuery{
			OrderID:     validators.SanitizeString(q.Get("order_id"), validators.MaxIdentifierLen),
			Unprocessed: q.Get("unprocessed") == "true",
			Limit:       limit,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list webhook logs"))
			return
		}
		responses.WriteSuccess(w, "", map[string]any{"logs": logs})
	}
}

func statsQuery(r *http.Request) (txsvc.StatsQuery, error) {
	from, err := validators.ParseQueryTime(r, "date_from")
	if err != nil {
		return txsvc.StatsQuery{}, err
	}
	to, err := validators.ParseQueryTime(r, "date_to")
	if err != nil {
		return txsvc.StatsQuery{}, err
	}
	return txsvc.StatsQuery{
		SchoolID: validators.SanitizeString(r.URL.Query().Get("school_id"), validators.MaxIdentifierLen),
		From:     from,
		To:       to,
	}, nil
}

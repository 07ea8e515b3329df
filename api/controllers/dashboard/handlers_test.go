package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txsvc "github.com/angelmondragon/schoolpay-backend/internal/transactions"
	"github.com/angelmondragon/schoolpay-backend/internal/webhooklogs"
	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
)

type stubService struct {
	statsQuery  txsvc.StatsQuery
	recentArgs  []any
	perfQuery   txsvc.StatsQuery
	topQuery    txsvc.TopSchoolsQuery
	statsCalled bool
}

func (s *stubService) Stats(_ context.Context, query txsvc.StatsQuery) (*txsvc.Stats, error) {
	s.statsCalled = true
	s.statsQuery = query
	return &txsvc.Stats{Overview: txsvc.Overview{TotalTransactions: 3}}, nil
}

func (s *stubService) Recent(_ context.Context, schoolID string, limit int) ([]txsvc.TransactionView, error) {
	s.recentArgs = []any{schoolID, limit}
	return []txsvc.TransactionView{{CustomOrderID: "ORD_1"}}, nil
}

func (s *stubService) GatewayPerformance(_ context.Context, query txsvc.StatsQuery) ([]txsvc.GatewayPerformance, error) {
	s.perfQuery = query
	return []txsvc.GatewayPerformance{{Gateway: "Edviron", TotalTransactions: 2}}, nil
}

func (s *stubService) TopSchools(_ context.Context, query txsvc.TopSchoolsQuery) (*txsvc.TopSchools, error) {
	s.topQuery = query
	return &txsvc.TopSchools{SortBy: "amount", Limit: 5}, nil
}

type stubLogs struct {
	query webhooklogs.ListQuery
	err   error
}

func (s *stubLogs) List(_ context.Context, query webhooklogs.ListQuery) ([]models.WebhookLog, error) {
	s.query = query
	if s.err != nil {
		return nil, s.err
	}
	return []models.WebhookLog{{OrderID: "ORD_1", Status: 200}}, nil
}

func get(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestStatsParsesFilters(t *testing.T) {
	svc := &stubService{}
	rec := get(Stats(svc, nil), "/api/dashboard/stats?school_id=school-1&date_from=2025-09-01&date_to=2025-09-30T23:59:59Z")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "school-1", svc.statsQuery.SchoolID)
	require.NotNil(t, svc.statsQuery.From)
	require.NotNil(t, svc.statsQuery.To)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), *svc.statsQuery.From)
	assert.Equal(t, time.Date(2025, 9, 30, 23, 59, 59, 0, time.UTC), *svc.statsQuery.To)

	var body struct {
		Data struct {
			Overview map[string]any `json:"overview"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 3, body.Data.Overview["total_transactions"])
}

func TestStatsRejectsBadDate(t *testing.T) {
	svc := &stubService{}
	rec := get(Stats(svc, nil), "/api/dashboard/stats?date_from=last-week")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, svc.statsCalled)
}

func TestRecentTransactions(t *testing.T) {
	svc := &stubService{}
	rec := get(RecentTransactions(svc, nil), "/api/dashboard/recent-transactions?limit=5&school_id=school-2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"school-2", 5}, svc.recentArgs)

	rec = get(RecentTransactions(svc, nil), "/api/dashboard/recent-transactions?limit=51")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGatewayPerformance(t *testing.T) {
	svc := &stubService{}
	rec := get(GatewayPerformance(svc, nil), "/api/dashboard/gateway-performance")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.perfQuery.From)

	var body struct {
		Data struct {
			Gateways []map[string]any `json:"gateways"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Gateways, 1)
	assert.Equal(t, "Edviron", body.Data.Gateways[0]["gateway"])
}

func TestTopSchools(t *testing.T) {
	svc := &stubService{}
	rec := get(TopSchools(svc, nil), "/api/dashboard/top-schools?limit=5&sort_by=amount")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, txsvc.TopSchoolsQuery{Limit: 5, SortBy: "amount"}, svc.topQuery)
}

func TestWebhookLogs(t *testing.T) {
	logs := &stubLogs{}
	rec := get(WebhookLogs(logs, nil), "/api/dashboard/webhook-logs?order_id=ORD_1&unprocessed=true&limit=20")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, webhooklogs.ListQuery{OrderID: "ORD_1", Unprocessed: true, Limit: 20}, logs.query)

	logs.err = errors.New("db down")
	rec = get(WebhookLogs(logs, nil), "/api/dashboard/webhook-logs")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlersRequireDependencies(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, get(Stats(nil, nil), "/").Code)
	assert.Equal(t, http.StatusInternalServerError, get(WebhookLogs(nil, nil), "/").Code)
}

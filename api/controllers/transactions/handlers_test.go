package transactions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txsvc "github.com/angelmondragon/schoolpay-backend/internal/transactions"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
	"github.com/angelmondragon/schoolpay-backend/pkg/types"
)

type stubService struct {
	listQuery   txsvc.ListQuery
	schoolArgs  []any
	statusID    string
	statusErr   error
	listCalls   int
	schoolCalls int
}

func (s *stubService) GetStatus(_ context.Context, customOrderID string) (*txsvc.StatusView, error) {
	s.statusID = customOrderID
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &txsvc.StatusView{
		TransactionView: txsvc.TransactionView{CustomOrderID: customOrderID, Status: "pending", PaymentMode: txsvc.PaymentModeUnknown},
		OrderStatus:     "processing",
	}, nil
}

func (s *stubService) List(_ context.Context, query txsvc.ListQuery) (*txsvc.ListResult, error) {
	s.listCalls++
	s.listQuery = query
	return &txsvc.ListResult{
		Transactions: []txsvc.TransactionView{{CustomOrderID: "ORD_1"}},
		Pagination:   types.Pagination{CurrentPage: query.Page, PerPage: query.Limit, TotalPages: 1, TotalRecords: 1},
	}, nil
}

func (s *stubService) ListBySchool(_ context.Context, schoolID string, page, limit int) (*txsvc.ListResult, error) {
	s.schoolCalls++
	s.schoolArgs = []any{schoolID, page, limit}
	return &txsvc.ListResult{Transactions: []txsvc.TransactionView{}}, nil
}

func router(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/transactions", List(svc, nil))
	r.Get("/api/transactions/school/{schoolId}", ListBySchool(svc, nil))
	r.Get("/api/transactions/status/{customOrderId}", Status(svc, nil))
	return r
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListParsesQuery(t *testing.T) {
	svc := &stubService{}
	rec := serve(router(svc), "/api/transactions?page=2&limit=25&sort=order_amount&order=asc&status=SUCCESS&school_id=school-1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, txsvc.ListQuery{
		Page:     2,
		Limit:    25,
		Sort:     "order_amount",
		Asc:      true,
		Status:   "SUCCESS",
		SchoolID: "school-1",
	}, svc.listQuery)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Transactions []map[string]any `json:"transactions"`
			Pagination   types.Pagination `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Len(t, body.Data.Transactions, 1)
	assert.Equal(t, 2, body.Data.Pagination.CurrentPage)
}

func TestListDefaults(t *testing.T) {
	svc := &stubService{}
	rec := serve(router(svc), "/api/transactions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.listQuery.Page)
	assert.Equal(t, 10, svc.listQuery.Limit)
	assert.False(t, svc.listQuery.Asc)
}

func TestListRejectsBadParams(t *testing.T) {
	for _, target := range []string{
		"/api/transactions?page=0",
		"/api/transactions?limit=101",
		"/api/transactions?limit=ten",
		"/api/transactions?order=sideways",
	} {
		svc := &stubService{}
		rec := serve(router(svc), target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Zero(t, svc.listCalls, target)
	}
}

func TestListBySchool(t *testing.T) {
	svc := &stubService{}
	rec := serve(router(svc), "/api/transactions/school/school-9?page=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"school-9", 3, 10}, svc.schoolArgs)
}

func TestStatus(t *testing.T) {
	svc := &stubService{}
	rec := serve(router(svc), "/api/transactions/status/ORD_42")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ORD_42", svc.statusID)

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pending", body.Data["status"])
	assert.Equal(t, "processing", body.Data["order_status"])
}

func TestStatusNotFound(t *testing.T) {
	svc := &stubService{statusErr: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	rec := serve(router(svc), "/api/transactions/status/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlersRequireService(t *testing.T) {
	rec := serve(router(nil), "/api/transactions")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/schoolpay-backend/internal/orders"
	"github.com/angelmondragon/schoolpay-backend/internal/orderstatus"
	"github.com/angelmondragon/schoolpay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
	"github.com/angelmondragon/schoolpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
)

var baseTime = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      Service
	orders   orders.Repository
	statuses orderstatus.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.New(t)
	f := &fixture{
		orders:   orders.NewRepository(conn),
		statuses: orderstatus.NewRepository(conn),
	}
	svc, err := NewService(ServiceParams{
		Orders:          f.orders,
		Statuses:        f.statuses,
		Reads:           NewRepository(conn),
		DefaultSchoolID: "school-1",
		Now:             func() time.Time { return baseTime.Add(30 * 24 * time.Hour) },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

type orderSpec struct {
	id      string
	school  string
	gateway string
	amount  int64
	offset  time.Duration
}

func (f *fixture) addOrder(t *testing.T, spec orderSpec) {
	t.Helper()
	if spec.school == "" {
		spec.school = "school-1"
	}
	if spec.gateway == "" {
		spec.gateway = "Edviron"
	}
	collect := "cr_" + spec.id
	require.NoError(t, f.orders.Create(context.Background(), &models.Order{
		SchoolID:         spec.school,
		Student:          models.StudentInfo{Name: "Student " + spec.id, StudentID: "STU-" + spec.id, Email: "s@example.com"},
		GatewayName:      spec.gateway,
		CustomOrderID:    spec.id,
		CollectRequestID: &collect,
		Amount:           decimal.NewFromInt(spec.amount),
		CallbackURL:      "https://school.test/cb",
		Status:           enums.OrderStatusProcessing,
		CreatedAt:        baseTime.Add(spec.offset),
	}))
}

func (f *fixture) addStatus(t *testing.T, id string, status string, amount, captured int64, mode string, paidAt *time.Time) {
	t.Helper()
	require.NoError(t, f.statuses.Upsert(context.Background(), &models.OrderStatus{
		CollectID:         id,
		OrderAmount:       decimal.NewFromInt(amount),
		TransactionAmount: decimal.NewFromInt(captured),
		Status:            enums.TransactionStatus(status),
		PaymentMode:       mode,
		PaymentTime:       paidAt,
	}))
}

func at(d time.Duration) *time.Time {
	t := baseTime.Add(d)
	return &t
}

func TestGetStatusFallsBackToOrder(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "ORD_1", amount: 500})

	view, err := f.svc.GetStatus(context.Background(), "ORD_1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(view.OrderAmount))
	assert.True(t, view.TransactionAmount.IsZero())
	assert.Equal(t, "processing", view.Status)
	assert.Equal(t, PaymentModeUnknown, view.PaymentMode)
	assert.True(t, baseTime.Equal(view.PaymentTime))
	assert.False(t, view.HasStatusRow)
}

func TestGetStatusPrefersStatusRow(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "ORD_2", amount: 500})
	f.addStatus(t, "ORD_2", "success", 750, 750, "upi", at(time.Hour))

	view, err := f.svc.GetStatus(context.Background(), "ORD_2")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(750).Equal(view.OrderAmount))
	assert.True(t, decimal.NewFromInt(750).Equal(view.TransactionAmount))
	assert.Equal(t, "success", view.Status)
	assert.Equal(t, "upi", view.PaymentMode)
	assert.True(t, at(time.Hour).Equal(view.PaymentTime))
	assert.Equal(t, "processing", view.OrderStatus)
	assert.True(t, view.HasStatusRow)
}

func TestGetStatusNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetStatus(context.Background(), "ORD_missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.GetStatus(context.Background(), " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListMergesAndPaginates(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "ORD_a", amount: 100, offset: time.Hour})
	f.addOrder(t, orderSpec{id: "ORD_b", amount: 200, offset: 2 * time.Hour})
	f.addOrder(t, orderSpec{id: "ORD_c", amount: 300, offset: 3 * time.Hour, school: "school-2"})
	f.addStatus(t, "ORD_b", "success", 200, 200, "card", at(5*time.Hour))

	res, err := f.svc.List(context.Background(), ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Pagination.TotalRecords)
	assert.Equal(t, 2, res.Pagination.TotalPages)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, "ORD_c", res.Transactions[0].CustomOrderID)
	assert.Equal(t, "ORD_b", res.Transactions[1].CustomOrderID)
	assert.Equal(t, "success", res.Transactions[1].Status)
	assert.Equal(t, "card", res.Transactions[1].PaymentMode)
	assert.Equal(t, PaymentModeUnknown, res.Transactions[0].PaymentMode)
	assert.Equal(t, "cr_ORD_c", res.Transactions[0].CollectRequestID)

	page2, err := f.svc.List(context.Background(), ListQuery{Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page2.Transactions, 1)
	assert.Equal(t, "ORD_a", page2.Transactions[0].CustomOrderID)
}

func TestListFiltersByMergedStatusCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "ORD_a", amount: 100})
	f.addOrder(t, orderSpec{id: "ORD_b", amount: 200})
	f.addStatus(t, "ORD_b", "failed", 200, 0, "", nil)

	res, err := f.svc.List(context.Background(), ListQuery{Status: "FAILED"})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "ORD_b", res.Transactions[0].CustomOrderID)

	res, err = f.svc.List(context.Background(), ListQuery{Status: "processing"})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "ORD_a", res.Transactions[0].CustomOrderID)
}

func TestListSortsByOrderAmount(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "ORD_a", amount: 300})
	f.addOrder(t, orderSpec{id: "ORD_b", amount: 100})
	f.addOrder(t, orderSpec{id: "ORD_c", amount: 200})
	f.addStatus(t, "ORD_c", "success", 900, 900, "upi", nil)

	res, err := f.svc.List(context.Background(), ListQuery{Sort: SortOrderAmount, Asc: true})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 3)
	assert.Equal(t, []string{"ORD_b", "ORD_a", "ORD_c"}, []string{
		res.Transactions[0].CustomOrderID,
		res.Transactions[1].CustomOrderID,
		res.Transactions[2].CustomOrderID,
	})
}

func TestListValidation(t *testing.T) {
	f := newFixture(t)

	for _, q := range []ListQuery{
		{Sort: "student_name"},
		{Limit: 101},
		{Status: "refunded"},
		{Page: -1},
	} {
		_, err := f.svc.List(context.Background(), q)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%+v", q)
	}
}

func TestListEmpty(t *testing.T) {
	res, err := newFixture(t).svc.List(context.Background(), ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
	assert.EqualValues(t, 0, res.Pagination.TotalRecords)
	assert.Equal(t, 1, res.Pagination.CurrentPage)
}

func TestListBySchool(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "ORD_a", amount: 100, school: "school-2"})
	f.addOrder(t, orderSpec{id: "ORD_b", amount: 100, school: "school-1"})

	res, err := f.svc.ListBySchool(context.Background(), "school-2", 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "ORD_a", res.Transactions[0].CustomOrderID)

	_, err = f.svc.ListBySchool(context.Background(), "", 1, 10)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecentOrdersByPaymentTime(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "ORD_old", amount: 100, offset: time.Hour})
	f.addOrder(t, orderSpec{id: "ORD_new", amount: 100, offset: 2 * time.Hour})
	f.addStatus(t, "ORD_old", "success", 100, 100, "upi", at(48*time.Hour))
	f.addOrder(t, orderSpec{id: "ORD_other", amount: 100, school: "school-9"})

	rows, err := f.svc.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ORD_old", rows[0].CustomOrderID)
	assert.Equal(t, "ORD_new", rows[1].CustomOrderID)

	_, err = f.svc.Recent(context.Background(), "", 51)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStatsAggregatesCaseInsensitively(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "ORD_1", amount: 100})
	f.addOrder(t, orderSpec{id: "ORD_2", amount: 200})
	f.addOrder(t, orderSpec{id: "ORD_3", amount: 300})
	f.addOrder(t, orderSpec{id: "ORD_4", amount: 400})
	f.addOrder(t, orderSpec{id: "ORD_x", amount: 999, school: "school-2"})
	f.addStatus(t, "ORD_1", "success", 100, 100, "upi", nil)
	f.addStatus(t, "ORD_2", "success", 200, 180, "card", nil)
	f.addStatus(t, "ORD_3", "failed", 300, 0, "", nil)

	stats, err := f.svc.Stats(context.Background(), StatsQuery{})
	require.NoError(t, err)
	assert.Equal(t, "school-1", stats.Filters.SchoolID)

	o := stats.Overview
	assert.EqualValues(t, 4, o.TotalTransactions)
	assert.EqualValues(t, 2, o.SuccessfulTransactions)
	assert.EqualValues(t, 1, o.FailedTransactions)
	assert.EqualValues(t, 1, o.PendingTransactions)
	assert.True(t, decimal.NewFromInt(1000).Equal(o.TotalAmount), o.TotalAmount.String())
	assert.True(t, decimal.NewFromInt(300).Equal(o.SuccessfulAmount))
	assert.True(t, decimal.NewFromInt(250).Equal(o.AverageAmount))
	assert.True(t, decimal.NewFromInt(50).Equal(o.SuccessRate))

	require.Len(t, stats.PaymentMethods, 2)
	byMethod := map[string]PaymentMethodStat{}
	for _, m := range stats.PaymentMethods {
		byMethod[m.Method] = m
	}
	assert.True(t, decimal.NewFromInt(180).Equal(byMethod["card"].TotalAmount))
	assert.EqualValues(t, 1, byMethod["upi"].Count)

	require.NotEmpty(t, stats.MonthlyTrends)
	assert.Equal(t, "2025-09", stats.MonthlyTrends[0].Month)
}

func TestStatsDateRange(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "ORD_1", amount: 100})
	f.addOrder(t, orderSpec{id: "ORD_2", amount: 100, offset: 72 * time.Hour})

	from := baseTime.Add(24 * time.Hour)
	stats, err := f.svc.Stats(context.Background(), StatsQuery{From: &from})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Overview.TotalTransactions)

	to := baseTime
	_, err = f.svc.Stats(context.Background(), StatsQuery{From: &from, To: &to})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGatewayPerformance(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "ORD_1", amount: 100, gateway: "Edviron"})
	f.addOrder(t, orderSpec{id: "ORD_2", amount: 100, gateway: "Edviron"})
	f.addOrder(t, orderSpec{id: "ORD_3", amount: 100, gateway: "PhonePe"})
	f.addStatus(t, "ORD_1", "success", 100, 100, "upi", nil)
	f.addStatus(t, "ORD_2", "failed", 100, 0, "", nil)

	rows, err := f.svc.GatewayPerformance(context.Background(), StatsQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Edviron", rows[0].Gateway)
	assert.EqualValues(t, 2, rows[0].TotalTransactions)
	assert.EqualValues(t, 1, rows[0].SuccessfulTransactions)
	assert.EqualValues(t, 1, rows[0].FailedTransactions)
	assert.True(t, decimal.NewFromInt(50).Equal(rows[0].SuccessRate))
	assert.EqualValues(t, 1, rows[1].PendingTransactions)
}

func TestTopSchoolsRanksByCountOrAmount(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, orderSpec{id: "A_1", school: "school-a", amount: 100})
	f.addOrder(t, orderSpec{id: "A_2", school: "school-a", amount: 100})
	f.addOrder(t, orderSpec{id: "B_1", school: "school-b", amount: 5000})
	f.addStatus(t, "A_1", "success", 100, 100, "upi", nil)

	byCount, err := f.svc.TopSchools(context.Background(), TopSchoolsQuery{})
	require.NoError(t, err)
	assert.Equal(t, TopSchoolsByTransactions, byCount.SortBy)
	assert.Equal(t, 10, byCount.Limit)
	require.Len(t, byCount.Schools, 2)
	assert.Equal(t, "school-a", byCount.Schools[0].SchoolID)
	assert.EqualValues(t, 2, byCount.Schools[0].TotalTransactions)
	assert.EqualValues(t, 1, byCount.Schools[0].SuccessfulTransactions)
	assert.True(t, decimal.NewFromInt(50).Equal(byCount.Schools[0].SuccessRate))

	byAmount, err := f.svc.TopSchools(context.Background(), TopSchoolsQuery{SortBy: "amount", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byAmount.Schools, 1)
	assert.Equal(t, "school-b", byAmount.Schools[0].SchoolID)
	assert.True(t, decimal.NewFromInt(5000).Equal(byAmount.Schools[0].TotalAmount))
}

func TestTopSchoolsValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.TopSchools(context.Background(), TopSchoolsQuery{Limit: 51})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.TopSchools(context.Background(), TopSchoolsQuery{SortBy: "name"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

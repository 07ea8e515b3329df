package transactions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/schoolpay-backend/internal/orders"
	"github.com/angelmondragon/schoolpay-backend/internal/orderstatus"
	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
	"github.com/angelmondragon/schoolpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
	"github.com/angelmondragon/schoolpay-backend/pkg/pagination"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50

	defaultTopSchools = 10
	maxTopSchools     = 50

	trendWindow       = 365 * 24 * time.Hour
	performanceWindow = 30 * 24 * time.Hour
)

var hundred = decimal.NewFromInt(100)

// Service answers every read over orders and their status rows. Writes
// happen elsewhere; nothing here mutates state.
type Service interface {
	GetStatus(ctx context.Context, customOrderID string) (*StatusView, error)
	List(ctx context.Context, query ListQuery) (*ListResult, error)
	ListBySchool(ctx context.Context, schoolID string, page, limit int) (*ListResult, error)
	Recent(ctx context.Context, schoolID string, limit int) ([]TransactionView, error)
	Stats(ctx context.Context, query StatsQuery) (*Stats, error)
	GatewayPerformance(ctx context.Context, query StatsQuery) ([]GatewayPerformance, error)
	TopSchools(ctx context.Context, query TopSchoolsQuery) (*TopSchools, error)
}

// ServiceParams groups dependencies for the transactions service.
type ServiceParams struct {
	Orders          orders.Repository
	Statuses        orderstatus.Repository
	Reads           Repository
	DefaultSchoolID string
	Now             func() time.Time
}

type service struct {
	orders          orders.Repository
	statuses        orderstatus.Repository
	reads           Repository
	defaultSchoolID string
	now             func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, errors.New("orders repository is required")
	}
	if params.Statuses == nil {
		return nil, errors.New("order status repository is required")
	}
	if params.Reads == nil {
		return nil, errors.New("transactions read repository is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		orders:          params.Orders,
		statuses:        params.Statuses,
		reads:           params.Reads,
		defaultSchoolID: strings.TrimSpace(params.DefaultSchoolID),
		now:             now,
	}, nil
}

// GetStatus reads the order and its status row independently and merges
// them. A missing status row is not an error.
func (s *service) GetStatus(ctx context.Context, customOrderID string) (*StatusView, error) {
	customOrderID = strings.TrimSpace(customOrderID)
	if customOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "custom order id is required")
	}

	order, err := s.orders.FindByCustomOrderID(ctx, customOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	status, err := s.statuses.FindByCollectID(ctx, customOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order status")
	}

	view := &StatusView{
		TransactionView: merge(order, status),
		OrderStatus:     string(order.Status),
		HasStatusRow:    status != nil,
	}
	if status != nil {
		view.PaymentMessage = status.PaymentMessage
		view.ErrorMessage = status.ErrorMessage
		view.GatewayStatus = status.GatewayStatus
	}
	return view, nil
}

func (s *service) List(ctx context.Context, query ListQuery) (*ListResult, error) {
	if err := validateList(&query); err != nil {
		return nil, err
	}
	rows, total, err := s.reads.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	out := &ListResult{
		Transactions: make([]TransactionView, 0, len(rows)),
		Pagination:   pagination.Params{Page: query.Page, Limit: query.Limit}.Meta(total),
	}
	for _, row := range rows {
		out.Transactions = append(out.Transactions, row.view())
	}
	return out, nil
}

// ListBySchool lists one school's transactions, newest first.
func (s *service) ListBySchool(ctx context.Context, schoolID string, page, limit int) (*ListResult, error) {
	schoolID = strings.TrimSpace(schoolID)
	if schoolID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "school id is required")
	}
	return s.List(ctx, ListQuery{Page: page, Limit: limit, SchoolID: schoolID, Sort: SortCreatedAt})
}

func (s *service) Recent(ctx context.Context, schoolID string, limit int) ([]TransactionView, error) {
	if limit < 0 || limit > maxRecentLimit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must be between 1 and 50")
	}
	if limit == 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.reads.Recent(ctx, s.schoolOrDefault(schoolID), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recent transactions")
	}
	out := make([]TransactionView, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.view())
	}
	return out, nil
}

// Stats aggregates the dashboard overview. Status comparisons are
// case-insensitive so rows written before normalization still count.
func (s *service) Stats(ctx context.Context, query StatsQuery) (*Stats, error) {
	if err := validateRange(query); err != nil {
		return nil, err
	}
	query.SchoolID = s.schoolOrDefault(query.SchoolID)

	buckets, err := s.reads.StatusBreakdown(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "status breakdown")
	}
	methods, err := s.reads.PaymentMethods(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment methods")
	}
	trends, err := s.reads.MonthlyTrends(ctx, query, s.now().UTC().Add(-trendWindow))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "monthly trends")
	}

	out := &Stats{
		Overview:       overview(buckets),
		PaymentMethods: make([]PaymentMethodStat, 0, len(methods)),
		MonthlyTrends:  make([]MonthlyTrend, 0, len(trends)),
		Filters:        StatsFilters{SchoolID: query.SchoolID, From: query.From, To: query.To},
	}
	for _, m := range methods {
		method := "unknown"
		if m.Method != nil && strings.TrimSpace(*m.Method) != "" {
			method = *m.Method
		}
		out.PaymentMethods = append(out.PaymentMethods, PaymentMethodStat{Method: method, Count: m.Count, TotalAmount: m.TotalAmount})
	}
	for _, t := range trends {
		out.MonthlyTrends = append(out.MonthlyTrends, MonthlyTrend(t))
	}
	return out, nil
}

func (s *service) GatewayPerformance(ctx context.Context, query StatsQuery) ([]GatewayPerformance, error) {
	now := s.now().UTC()
	if query.From == nil {
		from := now.Add(-performanceWindow)
		query.From = &from
	}
	if query.To == nil {
		query.To = &now
	}
	if err := validateRange(query); err != nil {
		return nil, err
	}

	buckets, err := s.reads.GatewayPerformance(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway performance")
	}
	out := make([]GatewayPerformance, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, GatewayPerformance{
			Gateway:                b.Gateway,
			TotalTransactions:      b.Total,
			SuccessfulTransactions: b.Successful,
			FailedTransactions:     b.Failed,
			PendingTransactions:    b.Pending,
			TotalAmount:            b.TotalAmount,
			SuccessfulAmount:       b.SuccessfulAmount,
			SuccessRate:            percent(b.Successful, b.Total),
			FailureRate:            percent(b.Failed, b.Total),
		})
	}
	return out, nil
}

// TopSchools ranks schools by transaction count or total amount across all
// time.
func (s *service) TopSchools(ctx context.Context, query TopSchoolsQuery) (*TopSchools, error) {
	limit := query.Limit
	if limit == 0 {
		limit = defaultTopSchools
	}
	if limit < 1 || limit > maxTopSchools {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must be between 1 and 50").
			WithDetails(map[string]string{"limit": "must be between 1 and 50"})
	}
	sortBy := strings.ToLower(strings.TrimSpace(query.SortBy))
	switch sortBy {
	case "":
		sortBy = TopSchoolsByTransactions
	case TopSchoolsByTransactions, TopSchoolsByAmount:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sort_by must be transactions or amount").
			WithDetails(map[string]string{"sort_by": "must be transactions or amount"})
	}

	buckets, err := s.reads.TopSchools(ctx, sortBy, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "top schools")
	}
	schools := make([]SchoolSummary, 0, len(buckets))
	for _, b := range buckets {
		schools = append(schools, SchoolSummary{
			SchoolID:               b.SchoolID,
			TotalTransactions:      b.Total,
			SuccessfulTransactions: b.Successful,
			TotalAmount:            b.TotalAmount,
			SuccessfulAmount:       b.SuccessfulAmount,
			SuccessRate:            percent(b.Successful, b.Total),
		})
	}
	return &TopSchools{Schools: schools, SortBy: sortBy, Limit: limit}, nil
}

func (s *service) schoolOrDefault(schoolID string) string {
	if id := strings.TrimSpace(schoolID); id != "" {
		return id
	}
	return s.defaultSchoolID
}

func overview(buckets []StatusBucket) Overview {
	out := Overview{
		TotalAmount:      decimal.Zero,
		SuccessfulAmount: decimal.Zero,
		AverageAmount:    decimal.Zero,
		SuccessRate:      decimal.Zero,
	}
	for _, b := range buckets {
		out.TotalTransactions += b.Count
		out.TotalAmount = out.TotalAmount.Add(b.TotalAmount)
		switch b.Status {
		case "success":
			out.SuccessfulTransactions += b.Count
			out.SuccessfulAmount = out.SuccessfulAmount.Add(b.TotalAmount)
		case "pending", "processing":
			out.PendingTransactions += b.Count
		case "failed", "failure":
			out.FailedTransactions += b.Count
		case "cancelled":
			out.CancelledTransactions += b.Count
		}
	}
	if out.TotalTransactions > 0 {
		out.AverageAmount = out.TotalAmount.Div(decimal.NewFromInt(out.TotalTransactions)).Round(2)
	}
	out.SuccessRate = percent(out.SuccessfulTransactions, out.TotalTransactions)
	return out
}

func percent(part, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(total)).Round(2)
}

func validateList(query *ListQuery) error {
	details := map[string]string{}
	if query.Page < 0 {
		details["page"] = "must be a positive integer"
	}
	if query.Limit < 0 || query.Limit > pagination.MaxLimit {
		details["limit"] = "must be between 1 and 100"
	}
	query.Sort = strings.TrimSpace(query.Sort)
	if query.Sort == "" {
		query.Sort = SortCreatedAt
	}
	if _, ok := sortExpressions[query.Sort]; !ok {
		details["sort"] = "must be one of payment_time, status, transaction_amount, order_amount"
	}
	if status := strings.TrimSpace(query.Status); status != "" {
		if _, err := enums.ParseOrderStatus(status); err != nil {
			details["status"] = "invalid status"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction query").WithDetails(details)
	}
	n := pagination.Params{Page: query.Page, Limit: query.Limit}.Normalize()
	query.Page, query.Limit = n.Page, n.Limit
	return nil
}

func validateRange(query StatsQuery) error {
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return pkgerrors.New(pkgerrors.CodeValidation, "date_from must not be after date_to")
	}
	return nil
}

// merge applies the read-side fallback chain: status row values win when
// present, the order's own fields fill the gaps.
func merge(order *models.Order, status *models.OrderStatus) TransactionView {
	view := TransactionView{
		CustomOrderID: order.CustomOrderID,
		SchoolID:      order.SchoolID,
		Gateway:       order.GatewayName,
		Student: StudentView{
			Name:  order.Student.Name,
			ID:    order.Student.StudentID,
			Email: order.Student.Email,
		},
		OrderAmount:       order.Amount,
		TransactionAmount: decimal.Zero,
		Status:            string(order.Status),
		PaymentMode:       PaymentModeUnknown,
		PaymentTime:       order.CreatedAt,
		CreatedAt:         order.CreatedAt,
	}
	if order.CollectRequestID != nil {
		view.CollectRequestID = *order.CollectRequestID
	}
	if status == nil {
		return view
	}

	if !status.OrderAmount.IsZero() {
		view.OrderAmount = status.OrderAmount
	}
	view.TransactionAmount = status.TransactionAmount
	if s := strings.TrimSpace(string(status.Status)); s != "" {
		view.Status = strings.ToLower(s)
	}
	if mode := strings.TrimSpace(status.PaymentMode); mode != "" {
		view.PaymentMode = mode
	}
	view.BankReference = status.BankReference
	if status.PaymentTime != nil {
		view.PaymentTime = *status.PaymentTime
	}
	return view
}

// view rebuilds both records from the joined row and merges them the same
// way GetStatus does.
func (r MergedRow) view() TransactionView {
	order := &models.Order{
		SchoolID:         r.SchoolID,
		GatewayName:      r.GatewayName,
		CustomOrderID:    r.CustomOrderID,
		CollectRequestID: r.CollectRequestID,
		Amount:           r.Amount,
		Status:           enums.OrderStatus(r.OrderStatus),
		CreatedAt:        r.CreatedAt,
		Student: models.StudentInfo{
			Name:      r.StudentName,
			StudentID: r.StudentID,
			Email:     r.StudentEmail,
		},
	}
	if r.StatusID == nil {
		return merge(order, nil)
	}
	status := &models.OrderStatus{
		CollectID:   r.CustomOrderID,
		PaymentTime: r.PaymentTime,
	}
	if r.StatusOrderAmount.Valid {
		status.OrderAmount = r.StatusOrderAmount.Decimal
	}
	if r.StatusTransactionAmount.Valid {
		status.TransactionAmount = r.StatusTransactionAmount.Decimal
	}
	if r.StatusValue != nil {
		status.Status = enums.TransactionStatus(*r.StatusValue)
	}
	if r.PaymentMode != nil {
		status.PaymentMode = *r.PaymentMode
	}
	if r.BankReference != nil {
		status.BankReference = *r.BankReference
	}
	return merge(order, status)
}
